package course

// Course groups documents and chat sessions under one subject.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a registered student or instructor as the backend reports it.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id,omitempty"`
}

// Document is a processed course file. Storage and index identifiers are
// opaque handles owned by the backend's ingestion pipeline.
type Document struct {
	ID            string `json:"id"`
	CourseID      string `json:"course_id"`
	FileName      string `json:"file_name"`
	LastModified  string `json:"last_modified"`
	StorageFileID string `json:"google_file_id,omitempty"`
	IndexPointID  string `json:"qdrant_point_id,omitempty"`
}
