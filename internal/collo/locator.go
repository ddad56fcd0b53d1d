package collo

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// Executable is a located collocation binary and the environment it needs.
type Executable struct {
	Path string
	Env  map[string]string
}

// Locator finds the collocation executable for a context.
type Locator interface {
	Locate(c Context) (Executable, error)
}

// NewLocator returns the locator selected by the executable configuration.
func NewLocator(cfg config.Executable) (Locator, error) {
	switch cfg.Mode {
	case "", "package":
		return PackageRoot{Root: cfg.Root}, nil
	case "delivery":
		return Deliveries{Root: cfg.Root}, nil
	default:
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown executable mode %q", cfg.Mode), nil)
	}
}

// PackageRoot locates versioned installs laid out as
// <root>/<hirs_version>/c++/hirs_avhrr with shared libraries in
// <root>/<hirs_version>/lib. The collocation version only names outputs.
type PackageRoot struct {
	Root string
}

// Locate implements Locator.
func (p PackageRoot) Locate(c Context) (Executable, error) {
	base := filepath.Join(p.Root, c.HirsVersion)
	path := filepath.Join(base, "c++", "hirs_avhrr")
	if err := checkExecutable(path); err != nil {
		return Executable{}, err
	}
	return Executable{
		Path: path,
		Env:  map[string]string{"LD_LIBRARY_PATH": filepath.Join(base, "lib")},
	}, nil
}

// DefaultDeliveryExecutable is used when delivery.yaml names none.
const DefaultDeliveryExecutable = "bin/hirs_avhrr"

// DeliveryManifest is the delivery.yaml found at the top of a delivery.
type DeliveryManifest struct {
	Executable string `yaml:"executable"`
	// Env values may refer to the delivery directory as $DELIVERY_DIR.
	Env map[string]string `yaml:"env"`
}

// Deliveries locates executables in unpacked deliveries laid out as
// <root>/<delivery id>/delivery.yaml.
type Deliveries struct {
	Root string
}

// Locate implements Locator. The context's collo_version is the delivery id.
func (d Deliveries) Locate(c Context) (Executable, error) {
	dir := filepath.Join(d.Root, c.ColloVersion)
	manifest, err := LoadDeliveryManifest(filepath.Join(dir, "delivery.yaml"))
	if err != nil {
		return Executable{}, err
	}

	rel := manifest.Executable
	if rel == "" {
		rel = DefaultDeliveryExecutable
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, rel)
	}
	if err := checkExecutable(path); err != nil {
		return Executable{}, err
	}

	env := make(map[string]string, len(manifest.Env)+1)
	for k, v := range manifest.Env {
		env[k] = os.Expand(v, func(name string) string {
			if name == "DELIVERY_DIR" {
				return dir
			}
			return "$" + name
		})
	}
	if _, ok := env["LD_LIBRARY_PATH"]; !ok {
		if fi, err := os.Stat(filepath.Join(dir, "lib")); err == nil && fi.IsDir() {
			env["LD_LIBRARY_PATH"] = filepath.Join(dir, "lib")
		}
	}
	return Executable{Path: path, Env: env}, nil
}

// LoadDeliveryManifest reads a delivery.yaml file.
func LoadDeliveryManifest(path string) (DeliveryManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DeliveryManifest{}, errors.NewExecutableNotFoundError(path, err).
				WithSuggestion("Check that the delivery id matches a directory under executable.root")
		}
		return DeliveryManifest{}, errors.Wrap(errors.ErrCodeFileReadFailed, errors.KindIO, "read "+path, err)
	}
	var m DeliveryManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return DeliveryManifest{}, errors.NewConfigInvalidError("delivery manifest "+path, err)
	}
	return m, nil
}

func checkExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return errors.NewExecutableNotFoundError(path, err)
	}
	if fi.IsDir() || fi.Mode().Perm()&0o111 == 0 {
		return errors.NewExecutableNotFoundError(path, fmt.Errorf("not an executable file"))
	}
	return nil
}
