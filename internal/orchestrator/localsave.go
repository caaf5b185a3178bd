package orchestrator

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
)

var errEmptyUpload = errors.New("empty upload")

// SaveUpload stores uploaded bytes under dir as <jobID>_<name> and returns
// the path. The name is reduced to its base to keep writes inside dir.
func SaveUpload(dir, jobID, name string, data []byte) (string, error) {
    if len(data) == 0 { return "", errEmptyUpload }
    if err := os.MkdirAll(dir, 0o755); err != nil { return "", err }
    base := filepath.Base(filepath.Clean("/" + name))
    if base == "/" || base == "." { base = "upload.pdf" }
    p := filepath.Join(dir, fmt.Sprintf("%s_%s", jobID, base))
    if err := os.WriteFile(p, data, 0o644); err != nil { return "", err }
    return p, nil
}
