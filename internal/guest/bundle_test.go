package guest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/woxQAQ/wbg-host/internal/wasm/wasmtest"
)

const helloManifest = `
name: hello
version: 0.1.0
wasm:
  file: guest.wasm
entry: run
exports:
  malloc: malloc
  destructor_table: __wbindgen_export_2
capabilities: [dom, timing]
`

// writeBundle creates dir/name holding manifest and a guest.wasm with wasm.
func writeBundle(t *testing.T, dir, name, manifest string, wasm []byte) string {
	t.Helper()

	bundleDir := filepath.Join(dir, name)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if wasm != nil {
		if err := os.WriteFile(filepath.Join(bundleDir, "guest.wasm"), wasm, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return bundleDir
}

func writeHelloBundle(t *testing.T, dir string) string {
	t.Helper()
	return writeBundle(t, dir, "hello", helloManifest, wasmtest.Guest())
}
