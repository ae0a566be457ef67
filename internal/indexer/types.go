package indexer

// Chunk is a bounded slice of a document's extracted text.
type Chunk struct {
	Index   int    // Position within the document (starts at 0)
	Page    int    // 1-based source page; 0 when the format has no pages
	Section string // Detected section header, empty when none
	Text    string
}

// SourceType classifies a document's evidence kind.
type SourceType string

const (
	SourceAAOS              SourceType = "AAOS"
	SourceRCT               SourceType = "RCT"
	SourceClinicalGuideline SourceType = "CLINICAL_GUIDELINE"
	SourceHospitalPolicy    SourceType = "HOSPITAL_POLICY"
	SourcePeerReview        SourceType = "PEER_REVIEW"
	SourceDoctorProtocol    SourceType = "DOCTOR_PROTOCOL"
	SourceOther             SourceType = "OTHER"
)

const defaultPrecedence = 50

var precedence = map[SourceType]int{
	SourceAAOS:              100,
	SourceRCT:               100,
	SourceClinicalGuideline: 100,
	SourceHospitalPolicy:    90,
	SourcePeerReview:        80,
	SourceDoctorProtocol:    95,
	SourceOther:             50,
}

// Precedence returns the rank of a source type; unknown types rank as OTHER.
func (s SourceType) Precedence() int {
	if p, ok := precedence[s]; ok {
		return p
	}
	return defaultPrecedence
}

// IsResearch reports whether documents of this type keep their extracted author.
func (s SourceType) IsResearch() bool {
	switch s {
	case SourceAAOS, SourceRCT, SourceClinicalGuideline, SourcePeerReview:
		return true
	}
	return false
}

// Valid reports whether s is one of the known source types.
func (s SourceType) Valid() bool {
	_, ok := precedence[s]
	return ok
}

// Payload keys written with every chunk.
const (
	PayloadDocumentID       = "document_id"
	PayloadCollection       = "collection"
	PayloadSourceType       = "source_type"
	PayloadPrecedence       = "precedence"
	PayloadPage             = "page"
	PayloadSection          = "section"
	PayloadText             = "text"
	PayloadChunkIndex       = "chunk_index"
	PayloadTitle            = "title"
	PayloadAuthor           = "author"
	PayloadPublicationYear  = "publication_year"
	PayloadOriginalFilename = "original_filename"
)
