package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh 24-character hex document id. Ids sort in creation order.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether s is a well-formed document id.
func ValidID(s string) bool {
	return primitive.IsValidObjectID(s)
}
