package provenance

import (
	"encoding/json"

	"github.com/wippyai/c2pa-bridge/errors"
)

// ManifestDataID names the manifest store resource of an ingredient.
const ManifestDataID = "manifest_data.c2pa"

// IngredientReport describes an asset as it would be referenced by another
// manifest. Thumbnail and ManifestData point at resources returned by
// Resources.
type IngredientReport struct {
	Title            string             `json:"title,omitempty"`
	Format           string             `json:"format"`
	InstanceID       string             `json:"instance_id"`
	ActiveManifest   string             `json:"active_manifest,omitempty"`
	Thumbnail        *ResourceRef       `json:"thumbnail,omitempty"`
	ManifestData     *ResourceRef       `json:"manifest_data,omitempty"`
	ValidationStatus []ValidationStatus `json:"validation_status,omitempty"`

	resources map[string][]byte
}

// NewIngredient reads the asset in data with e and describes it. An asset
// without a manifest store yields an ingredient with a fresh instance id
// and no manifest data. An empty title falls back to the active
// manifest's title.
func NewIngredient(e Engine, title, format string, data []byte) (*IngredientReport, error) {
	f, ok := NormalizeFormat(format)
	if !ok {
		return nil, unsupported("ingredient", format)
	}
	ing := &IngredientReport{
		Title:     title,
		Format:    f,
		resources: make(map[string][]byte),
	}

	store, err := e.Read(f, data)
	switch {
	case errors.CodeOf(err) == errors.CodeNotFound:
		ing.InstanceID = newInstanceID()
		return ing, nil
	case err != nil:
		return nil, err
	}

	ing.ValidationStatus = store.ValidationStatus
	ing.ActiveManifest = store.ActiveManifest
	if raw := store.Raw(); len(raw) > 0 {
		ing.resources[ManifestDataID] = raw
		ing.ManifestData = &ResourceRef{Format: FormatSidecar, Identifier: ManifestDataID}
	}

	active, ok := store.Active()
	if !ok {
		ing.InstanceID = newInstanceID()
		return ing, nil
	}
	ing.InstanceID = active.InstanceID
	if ing.Title == "" {
		ing.Title = active.Title
	}
	if active.Thumbnail != nil {
		thumb, err := store.Resource(active.Label, active.Thumbnail.Identifier)
		if err == nil {
			id := thumbnailID(active.Thumbnail.Format)
			ing.resources[id] = thumb
			ing.Thumbnail = &ResourceRef{Format: active.Thumbnail.Format, Identifier: id}
		}
	}
	return ing, nil
}

// thumbnailID derives a flat file name for a thumbnail; stored identifiers
// may be URIs.
func thumbnailID(format string) string {
	switch format {
	case FormatJPEG, "jpeg", "jpg":
		return "thumbnail.jpg"
	case "image/png", "png":
		return "thumbnail.png"
	}
	return "thumbnail.bin"
}

// Resources returns copies of the resources the report references, keyed
// by identifier.
func (r *IngredientReport) Resources() map[string][]byte {
	out := make(map[string][]byte, len(r.resources))
	for id, data := range r.resources {
		out[id] = append([]byte(nil), data...)
	}
	return out
}

// JSON renders the report as indented JSON.
func (r *IngredientReport) JSON() (string, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Engine(errors.PhaseEngine, "ingredient", err)
	}
	return string(out), nil
}
