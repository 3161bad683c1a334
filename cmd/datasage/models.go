package main

import (
	"github.com/datasage-io/datasage/pkg/schema"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// buildRegistry declares the demo storefront models. The registry is the
// external model input of the agent core; deployments swap this out for
// their own catalog.
func buildRegistry() *schema.Registry {
	registry := schema.NewRegistry()

	registry.MustRegister(schema.Model{
		Name:       "User",
		Collection: "users",
		Timestamps: true,
		Fields: []schema.Field{
			{Name: "email", Type: schema.TypeString, Required: true, Unique: true, Indexed: true},
			{Name: "name", Type: schema.TypeString, Required: true, MaxLength: intPtr(120)},
			{Name: "role", Type: schema.TypeString, Enum: []string{"customer", "staff", "admin"}, Default: "customer"},
			{Name: "active", Type: schema.TypeBoolean, Default: true},
		},
	})

	registry.MustRegister(schema.Model{
		Name:       "Product",
		Collection: "products",
		Timestamps: true,
		Fields: []schema.Field{
			{Name: "sku", Type: schema.TypeString, Required: true, Unique: true},
			{Name: "title", Type: schema.TypeString, Required: true, MinLength: intPtr(1), MaxLength: intPtr(200)},
			{Name: "price", Type: schema.TypeNumber, Required: true, Min: floatPtr(0)},
			{Name: "tags", Type: schema.TypeArray, Items: &schema.Field{Type: schema.TypeString}},
			{Name: "stock", Type: schema.TypeNumber, Min: floatPtr(0), Default: 0},
		},
	})

	registry.MustRegister(schema.Model{
		Name:       "Order",
		Collection: "orders",
		Timestamps: true,
		Fields: []schema.Field{
			{Name: "user", Type: schema.TypeObjectID, Ref: "User", Required: true, Indexed: true},
			{Name: "status", Type: schema.TypeString, Required: true, Indexed: true,
				Enum: []string{"pending", "paid", "shipped", "delivered", "cancelled"}},
			{Name: "total", Type: schema.TypeNumber, Required: true, Min: floatPtr(0)},
			{Name: "items", Type: schema.TypeArray, Required: true, Items: &schema.Field{
				Type: schema.TypeObject,
				Fields: []schema.Field{
					{Name: "product", Type: schema.TypeObjectID, Ref: "Product", Required: true},
					{Name: "quantity", Type: schema.TypeNumber, Required: true, Min: floatPtr(1)},
					{Name: "unitPrice", Type: schema.TypeNumber, Required: true, Min: floatPtr(0)},
				},
			}},
			{Name: "shippingAddress", Type: schema.TypeObject, Fields: []schema.Field{
				{Name: "street", Type: schema.TypeString, Required: true},
				{Name: "city", Type: schema.TypeString, Required: true},
				{Name: "country", Type: schema.TypeString, Required: true, MinLength: intPtr(2), MaxLength: intPtr(2)},
			}},
		},
	})

	registry.MustRegister(schema.Model{
		Name:       "Review",
		Collection: "reviews",
		Timestamps: true,
		Fields: []schema.Field{
			{Name: "product", Type: schema.TypeObjectID, Ref: "Product", Required: true, Indexed: true},
			{Name: "user", Type: schema.TypeObjectID, Ref: "User", Required: true},
			{Name: "rating", Type: schema.TypeNumber, Required: true, Min: floatPtr(1), Max: floatPtr(5)},
			{Name: "comment", Type: schema.TypeString, MaxLength: intPtr(2000)},
			{Name: "moderated", Type: schema.TypeBoolean, Default: false},
		},
	})

	return registry
}
