package models

// EmailScanResult is the payload produced by an email scan
type EmailScanResult struct {
	Email          string          `json:"email"`
	SourcesChecked []string        `json:"sources_checked"`
	Breaches       []BreachRecord  `json:"breaches"`
	SocialProfiles []ProfileMatch  `json:"social_profiles"`
	Domains        []string        `json:"domains"`
	Confidence     int             `json:"confidence"`
}

// BreachRecord describes a single breach a target appeared in
type BreachRecord struct {
	Name        string   `json:"name"`
	Date        string   `json:"date"`
	DataClasses []string `json:"data_classes"`
}

// ProfileMatch is a social profile linked to a target with a match score
type ProfileMatch struct {
	Platform        string `json:"platform"`
	URL             string `json:"url"`
	MatchConfidence int    `json:"match_confidence"`
}

// PhoneScanResult is the payload produced by a phone scan
type PhoneScanResult struct {
	Phone        string       `json:"phone"`
	Valid        bool         `json:"valid"`
	Carrier      string       `json:"carrier,omitempty"`
	Country      string       `json:"country,omitempty"`
	LineType     string       `json:"line_type,omitempty"`
	Location     string       `json:"location,omitempty"`
	OwnerDetails OwnerDetails `json:"owner_details"`
	Confidence   int          `json:"confidence"`
}

// OwnerDetails holds what little owner information carriers expose
type OwnerDetails struct {
	Name             string `json:"name,omitempty"`
	AgeRange         string `json:"age_range,omitempty"`
	AssociatedEmails int    `json:"associated_emails"`
}

// SocialScanResult is the payload produced by a username scan
type SocialScanResult struct {
	Username          string          `json:"username"`
	PlatformsChecked  []string        `json:"platforms_checked"`
	PlatformsFound    []string        `json:"platforms_found"`
	PlatformsNotFound []string        `json:"platforms_not_found"`
	Profiles          []SocialProfile `json:"profiles"`
	Confidence        int             `json:"confidence"`
}

// SocialProfile is a profile discovered on a single platform
type SocialProfile struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Username string `json:"username"`
}

// ImageScanResult is the payload produced by an image scan
type ImageScanResult struct {
	ImagePath      string         `json:"image_path"`
	FacesDetected  int            `json:"faces_detected"`
	FaceData       []FaceData     `json:"face_data"`
	ReverseMatches []ReverseMatch `json:"reverse_matches"`
	Metadata       ImageMetadata  `json:"metadata"`
	Confidence     int            `json:"confidence"`
}

// FaceData describes a single detected face
type FaceData struct {
	Confidence     float64           `json:"confidence"`
	AgeEstimate    string            `json:"age_estimate,omitempty"`
	Gender         string            `json:"gender,omitempty"`
	FacialFeatures map[string]string `json:"facial_features,omitempty"`
}

// ReverseMatch is a hit from reverse image search
type ReverseMatch struct {
	URL        string  `json:"url"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// ImageMetadata holds EXIF-style metadata extracted from an image
type ImageMetadata struct {
	Camera        string         `json:"camera,omitempty"`
	DateTaken     string         `json:"date_taken,omitempty"`
	Location      *GeoCoordinate `json:"location,omitempty"`
	Dimensions    string         `json:"dimensions,omitempty"`
	HasBeenEdited bool           `json:"has_been_edited"`
}

// GeoCoordinate is a latitude/longitude pair
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GenericScanResult is the payload produced by a generic lookup
type GenericScanResult struct {
	Target         string   `json:"target"`
	SourcesChecked []string `json:"sources_checked"`
	Findings       int      `json:"findings"`
	Confidence     int      `json:"confidence"`
}
