package domain

import "context"

type Match struct {
	FaceID     string
	ExternalID string
	Similarity float64
}

// Matcher is the external biometric service. Collections are per facility.
type Matcher interface {
	// CreateCollection returns ErrCollectionExists when it is already there.
	CreateCollection(ctx context.Context, collectionID string) error
	// IndexFace returns ErrNoFaceDetected when the image holds no usable face.
	IndexFace(ctx context.Context, collectionID string, image []byte, externalID string) (string, error)
	DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) error
	// SearchFaces returns the best match at or above threshold, or nil.
	SearchFaces(ctx context.Context, collectionID string, image []byte, threshold float64) (*Match, error)
}
