package dataset

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"call-analytics-go/internal/transcription"
	"call-analytics-go/internal/types"
)

var contactIDRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,127}$`)

// ValidContactID reports whether id has the documented contact id format:
// an alphanumeric first character, then up to 127 alphanumerics or hyphens.
func ValidContactID(id string) bool {
	return contactIDRE.MatchString(id)
}

// ContactIDFromKey derives the contact id from an object key: the base name
// without extension, cut at the first underscore.
//
//	transcripts/2025/01/6f1c2a9e-77aa-4c3d_analysis.json -> 6f1c2a9e-77aa-4c3d
func ContactIDFromKey(key string) (string, error) {
	base := path.Base(strings.ReplaceAll(key, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	id, _, _ := strings.Cut(base, "_")
	if !ValidContactID(id) {
		return "", fmt.Errorf("%w: key %q does not carry a contact id", types.ErrMissingMetadata, key)
	}
	return id, nil
}

// ResolveContactID picks the contact id for a listed object: the manifest value,
// then the key rule, then the ContactId inside the payload.
func ResolveContactID(obj Object, payload []byte) (string, error) {
	if obj.ContactID != "" {
		if !ValidContactID(obj.ContactID) {
			return "", fmt.Errorf("%w: manifest contact id %q for %s is invalid", types.ErrMissingMetadata, obj.ContactID, obj.Key)
		}
		return obj.ContactID, nil
	}
	if id, err := ContactIDFromKey(obj.Key); err == nil {
		return id, nil
	}
	if id := transcription.PayloadContactID(payload); ValidContactID(id) {
		return id, nil
	}
	return "", fmt.Errorf("%w: no contact id for %s", types.ErrMissingMetadata, obj.Key)
}
