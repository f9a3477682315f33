// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// IngestStatus is the state of the server-side "ingest this PDF" pipeline
// for one attached reference, as believed locally or reported by the backend.
type IngestStatus string

const (
	// IngestPending is the optimistic initial state set at attach time.
	IngestPending IngestStatus = "pending"

	// IngestUploading means the backend is fetching and processing the PDF.
	IngestUploading IngestStatus = "uploading"

	// IngestSuccess means the reference is fully ingested and usable.
	IngestSuccess IngestStatus = "success"

	// IngestFailed means the backend gave up on the PDF.
	IngestFailed IngestStatus = "failed"

	// IngestNoPDF means the backend could not locate a PDF for the paper.
	IngestNoPDF IngestStatus = "no_pdf"
)

// IsValid reports whether s is one of the recognized ingest statuses.
func (s IngestStatus) IsValid() bool {
	switch s {
	case IngestPending, IngestUploading, IngestSuccess, IngestFailed, IngestNoPDF:
		return true
	}
	return false
}

// IngestionState tracks one attached reference. Created when the user
// attaches a discovered paper; mutated only by the attach action (initial
// pending) and by poller reconciliation (authoritative overwrite). Never
// deleted automatically; cleared only when the user resets the channel.
type IngestionState struct {
	// PaperID is the discovered paper this reference was created from.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// ReferenceID is the backend identifier for the created reference.
	ReferenceID string `json:"reference_id" yaml:"reference_id"`

	// Status is the locally believed ingestion status.
	Status IngestStatus `json:"status" yaml:"status"`

	// IsAdding mirrors whether the reference is still queued on the backend.
	// Set at attach time and on a pending poll result; any other reported
	// status clears it.
	IsAdding bool `json:"is_adding" yaml:"is_adding"`
}

// IngestionSummary aggregates tracked references for one channel. Uploading
// references count as pending: from the user's perspective both mean
// "still working".
type IngestionSummary struct {
	Success int `json:"success" yaml:"success"`
	Failed  int `json:"failed" yaml:"failed"`
	NoPDF   int `json:"no_pdf" yaml:"no_pdf"`
	Pending int `json:"pending" yaml:"pending"`

	// Verified is true once at least one poll response has been applied,
	// so the counts reflect server truth rather than optimistic guesses.
	Verified bool `json:"verified" yaml:"verified"`
}

// Total returns the number of tracked references.
func (s IngestionSummary) Total() int {
	return s.Success + s.Failed + s.NoPDF + s.Pending
}
