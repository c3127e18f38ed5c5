package xmp

import "errors"

var (
	// ErrDecode reports content that is not text under any supported encoding.
	ErrDecode = errors.New("xmp: content is not decodable text")
	// ErrStructureMissing reports a document without a usable rdf:Description container.
	ErrStructureMissing = errors.New("xmp: rdf:Description container not found")
	// ErrNoRecoverableValue reports a group repair with no value to write back.
	ErrNoRecoverableValue = errors.New("xmp: no recoverable group value")
	// ErrInvalidValue reports a cluster or group value that cannot be written.
	ErrInvalidValue = errors.New("xmp: invalid field value")
)
