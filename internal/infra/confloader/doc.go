// Package confloader loads and watches the server configuration.
//
// Sources, lowest to highest priority:
//
//  1. defaults already set in the target struct
//  2. the YAML file
//  3. PAIRMESH_* environment variables, "__" between levels
//     (PAIRMESH_SESSION__GRACE_WINDOW=45s)
//  4. overrides passed with WithOverrides
//
// The loader remembers the source of every key and rejects file keys
// that match no field, so a misspelt setting fails at startup instead
// of being ignored. Watcher reports writes to watched files after a
// debounce; the server uses it for config reload and certificate
// rotation.
package confloader
