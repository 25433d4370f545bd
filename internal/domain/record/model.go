package record

import (
	"io"
	"time"

	"github.com/google/uuid"
)

var categories = []string{
	"lab_report", "prescription", "imaging", "diagnosis", "vaccination",
	"surgery", "discharge_summary", "insurance", "other",
}

// MedicalRecord is the metadata of one uploaded document. FilePath holds
// the public URL returned by the object store.
type MedicalRecord struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patientId"`
	Category      string    `json:"category"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	RecordDate    time.Time `json:"recordDate"`
	PhysicianName string    `json:"physicianName"`
	FacilityName  string    `json:"facilityName"`
	FilePath      string    `json:"filePath"`
	FileType      string    `json:"fileType"`
	FileSize      int64     `json:"fileSize"`
	IsCritical    bool      `json:"isCritical"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Filter narrows a record listing. Dates are inclusive.
type Filter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	Search     string
	IsCritical *bool
	Category   string
}

// Metadata is the form part of an upload.
type Metadata struct {
	Category      string
	Title         string
	Description   string
	RecordDate    string
	PhysicianName string
	FacilityName  string
	IsCritical    bool
}

// File is the binary part of an upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UpdateInput changes metadata only; the stored file is immutable.
type UpdateInput struct {
	Category      *string `json:"category"`
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	RecordDate    *string `json:"recordDate"`
	PhysicianName *string `json:"physicianName"`
	FacilityName  *string `json:"facilityName"`
	IsCritical    *bool   `json:"isCritical"`
}

func (in UpdateInput) apply(r *MedicalRecord, date *time.Time) {
	if in.Category != nil {
		r.Category = *in.Category
	}
	if in.Title != nil {
		r.Title = *in.Title
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	if date != nil {
		r.RecordDate = *date
	}
	if in.PhysicianName != nil {
		r.PhysicianName = *in.PhysicianName
	}
	if in.FacilityName != nil {
		r.FacilityName = *in.FacilityName
	}
	if in.IsCritical != nil {
		r.IsCritical = *in.IsCritical
	}
}
