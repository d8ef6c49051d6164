package credstore

import (
	"github.com/felixgeelhaar/ignite/internal/auth"
)

// Store backend types
const (
	TypeMemory = "memory"
	TypeFile   = "file"
)

// Config selects and configures a backend.
type Config struct {
	// Type is "memory" or "file" (default)
	Type string

	// Dir is the directory for the file backend
	Dir string

	// EncryptionKey enables sealing of file records when non-empty
	EncryptionKey string
}

// New creates a store from the configuration.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeMemory:
		return NewMemoryStore(), nil

	case TypeFile, "":
		var opts []FileOption
		if cfg.EncryptionKey != "" {
			sealer, err := NewSealer(cfg.EncryptionKey)
			if err != nil {
				return nil, auth.WrapError(auth.ErrConfig, "invalid store encryption key", err, nil)
			}
			opts = append(opts, WithSealer(sealer))
		}
		return NewFileStore(cfg.Dir, opts...)

	default:
		return nil, auth.NewError(auth.ErrConfig, "unknown store type: "+cfg.Type, map[string]interface{}{
			"type": cfg.Type,
		})
	}
}
