package api

import "net/http"

// Operation names one externally visible action on a resource.
type Operation string

const (
	ProductList          Operation = "product.list"
	ProductRetrieve      Operation = "product.retrieve"
	ProductSearch        Operation = "product.search"
	ProductCreate        Operation = "product.create"
	ProductUpdate        Operation = "product.update"
	ProductPartialUpdate Operation = "product.partial_update"
	ProductDelete        Operation = "product.delete"

	CategoryList          Operation = "category.list"
	CategoryRetrieve      Operation = "category.retrieve"
	CategoryCreate        Operation = "category.create"
	CategoryUpdate        Operation = "category.update"
	CategoryPartialUpdate Operation = "category.partial_update"
	CategoryDelete        Operation = "category.delete"
)

// Shape selects the response representation of an operation.
type Shape int

const (
	ShapeProduct Shape = iota
	// ShapeSearchHit is ShapeProduct plus the similarity rank.
	ShapeSearchHit
	ShapeCategory
)

type Capability struct {
	RequiresAuth bool
	Shape        Shape
}

type Capabilities map[Operation]Capability

func DefaultCapabilities() Capabilities {
	return Capabilities{
		ProductList:          {Shape: ShapeProduct},
		ProductRetrieve:      {Shape: ShapeProduct},
		ProductSearch:        {Shape: ShapeSearchHit},
		ProductCreate:        {RequiresAuth: true, Shape: ShapeProduct},
		ProductUpdate:        {RequiresAuth: true, Shape: ShapeProduct},
		ProductPartialUpdate: {RequiresAuth: true, Shape: ShapeProduct},
		ProductDelete:        {RequiresAuth: true, Shape: ShapeProduct},

		CategoryList:          {Shape: ShapeCategory},
		CategoryRetrieve:      {Shape: ShapeCategory},
		CategoryCreate:        {RequiresAuth: true, Shape: ShapeCategory},
		CategoryUpdate:        {RequiresAuth: true, Shape: ShapeCategory},
		CategoryPartialUpdate: {RequiresAuth: true, Shape: ShapeCategory},
		CategoryDelete:        {RequiresAuth: true, Shape: ShapeCategory},
	}
}

// Lookup returns the capability of op. Unknown operations require auth.
func (c Capabilities) Lookup(op Operation) Capability {
	if capability, ok := c[op]; ok {
		return capability
	}
	return Capability{RequiresAuth: true}
}

// Guard wraps h with authenticate when op requires it.
func (c Capabilities) Guard(op Operation, authenticate func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler {
	if c.Lookup(op).RequiresAuth {
		return authenticate(h)
	}
	return h
}
