package models

// Project is the stored shape of an external project row. Only the fields
// the work-order core denormalizes are mapped; the rest of the record
// belongs to the project service.
type Project struct {
	ProjectID string `json:"projectID" dynamodbav:"projectID"`
	Name      string `json:"name" dynamodbav:"name"`
}

// Point is the stored shape of an external measurement point row.
type Point struct {
	PointID   string  `json:"pointID" dynamodbav:"pointID"`
	Type      string  `json:"type" dynamodbav:"type"`
	Latitude  float64 `json:"latitude" dynamodbav:"latitude"`
	Longitude float64 `json:"longitude" dynamodbav:"longitude"`
}
