package indexer

import (
	"path"
	"strings"

	"github.com/google/uuid"

	"clinical-rag/internal/directory"
)

// UploadPrefix starts every key written by the upload paths. Only documents
// under it get presigned display URLs.
const UploadPrefix = "uploads/"

// TargetCollection returns the collection a document is ingested into.
// Clinician and general collections are used as requested; anything else,
// including no request, goes to the default collection.
func TargetCollection(requested, defaultCollection string) string {
	requested = strings.TrimSpace(requested)
	if strings.HasPrefix(requested, directory.CollectionPrefix) {
		return requested
	}
	return defaultCollection
}

// ProtocolCollection names the collection for a clinician's protocol.
func ProtocolCollection(clinicianID, protocol string) string {
	return directory.OwnerPrefix(clinicianID) + directory.Slugify(protocol)
}

// UploadKey returns a fresh blob key for a generic upload into collection.
func UploadKey(collection, filename string) string {
	key := UploadPrefix + collection + "/" + uuid.NewString()
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		key += ext
	}
	return key
}

// ProtocolUploadKey returns a fresh blob key for a clinician protocol upload.
func ProtocolUploadKey(clinicianID, protocol, filename string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return UploadPrefix + "doctors/" + directory.Slugify(clinicianID) + "/" + directory.Slugify(protocol) + "/" +
		id + strings.ToLower(path.Ext(filename))
}
