package models

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names understood by ValidateJSON.
const (
	SchemaExport     = "export"
	SchemaGeometry   = "geometry"
	SchemaProperties = "properties"
)

var ErrSchema = errors.New("schema violation")

// ValidateJSON checks data against one of the embedded schemas.
func ValidateJSON(schema string, data []byte) error {
	schemaBytes, err := schemaFS.ReadFile("schemas/" + schema + ".schema.json")
	if err != nil {
		return fmt.Errorf("load schema %s: %w", schema, err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}
	return nil
}

// ============================================================
// Export document
// ============================================================

// ExportDocument is the downloadable floor plan: one feature collection
// per polygon kind.
type ExportDocument struct {
	Walls     *geojson.FeatureCollection `json:"walls"`
	Rooms     *geojson.FeatureCollection `json:"rooms"`
	Furniture *geojson.FeatureCollection `json:"furniture"`
}

func NewExportDocument(walls []Wall, rooms []Room, furniture []Furniture) *ExportDocument {
	doc := &ExportDocument{
		Walls:     geojson.NewFeatureCollection(),
		Rooms:     geojson.NewFeatureCollection(),
		Furniture: geojson.NewFeatureCollection(),
	}
	for _, w := range walls {
		doc.Walls.Append(w.GeoJSON())
	}
	for _, r := range rooms {
		doc.Rooms.Append(r.GeoJSON())
	}
	for _, f := range furniture {
		doc.Furniture.Append(f.GeoJSON())
	}
	return doc
}

func (d *ExportDocument) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ParseExportDocument validates data against the export schema and decodes it.
func ParseExportDocument(data []byte) (*ExportDocument, error) {
	if err := ValidateJSON(SchemaExport, data); err != nil {
		return nil, err
	}
	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return &doc, nil
}

// Entities decodes every feature. Invalid ones are skipped and reported.
func (d *ExportDocument) Entities() (walls []Wall, rooms []Room, furniture []Furniture, errs []error) {
	decode := func(kind Kind, fc *geojson.FeatureCollection, add func(Entity)) {
		if fc == nil {
			return
		}
		for _, f := range fc.Features {
			e, err := FromGeoJSON(kind, f)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			add(e)
		}
	}
	decode(KindWall, d.Walls, func(e Entity) { walls = append(walls, e.(Wall)) })
	decode(KindRoom, d.Rooms, func(e Entity) { rooms = append(rooms, e.(Room)) })
	decode(KindFurniture, d.Furniture, func(e Entity) { furniture = append(furniture, e.(Furniture)) })
	return walls, rooms, furniture, errs
}

func (d *ExportDocument) Len() int {
	n := 0
	for _, fc := range []*geojson.FeatureCollection{d.Walls, d.Rooms, d.Furniture} {
		if fc != nil {
			n += len(fc.Features)
		}
	}
	return n
}
