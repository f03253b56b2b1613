//go:build notflite

package inference

import "github.com/pkg/errors"

// openTFLite reports that the binary was built without the TensorFlow Lite runtime.
func openTFLite(path string, _ Options) (Engine, error) {
	return nil, errors.Errorf("cannot open %s: built with the notflite tag", path)
}
