package devices

import (
	"github.com/invopop/jsonschema"
)

// LinePoint is one end of a virtual line, in frame pixels.
type LinePoint struct {
	X int `json:"x" jsonschema:"minimum=0"`
	Y int `json:"y" jsonschema:"minimum=0"`
}

// DeviceRecord documents one entry of the device document. Unknown fields are
// kept as device metadata.
type DeviceRecord struct {
	DeviceID   string `json:"device_id" jsonschema:"required,description=Stable device identifier"`
	DeviceName string `json:"device_name,omitempty" jsonschema:"description=Display name"`
	Source     string `json:"source" jsonschema:"required,description=Video source URI (rtsp://, http(s)://, file path)"`
	// Points may also be sent as a string holding the JSON encoded list.
	HorizontalLinePoints []LinePoint `json:"horizontal_line_points" jsonschema:"minItems=2,maxItems=2"`
	VerticalLinePoints   []LinePoint `json:"vertical_line_points" jsonschema:"minItems=2,maxItems=2"`
}

// Document is the device server payload.
type Document struct {
	Devices []DeviceRecord `json:"devices"`
}

// Schema returns the JSON schema of the device document.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(&Document{})
	schema.Title = "Vision device configuration"
	schema.Description = "Cameras registered as sessions, with the two lines used for crossing detection"
	return schema
}
