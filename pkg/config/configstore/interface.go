package configstore

// ConfigStore persists settings. Load decodes into out, which must be a pointer.
type ConfigStore interface {
	Load(out any) error
	Save(data any) error
}
