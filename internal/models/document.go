package models

// CellColor carries the explicit font and background colors of a sheet cell
// as the data source reports them. Colors applied by conditional formatting
// are not visible here.
type CellColor struct {
	Font       string `json:"font,omitempty"`
	Background string `json:"background,omitempty"`
}

// DateField is one date-bearing cell of a document row.
type DateField struct {
	DocumentType string    `json:"document_type"`
	Column       string    `json:"column"`
	Raw          string    `json:"raw"`
	Color        CellColor `json:"color"`
}

// DocumentRecord is one row of the fleet register.
type DocumentRecord struct {
	Row            int         `json:"row"`
	ID             string      `json:"id"`
	Label          string      `json:"label,omitempty"`
	Plant          string      `json:"plant,omitempty"`
	Location       string      `json:"location,omitempty"`
	InspectionDate string      `json:"inspection_date,omitempty"`
	Fields         []DateField `json:"fields"`
}
