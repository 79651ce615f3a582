package devserver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture seeds a Server. It is the backend block of harness scenarios and
// the file format of `flame devserver --fixture`.
type Fixture struct {
	Users     []FixtureUser `yaml:"users"`
	Species   []FixtureItem `yaml:"species"`
	Reactions []FixtureItem `yaml:"reactions"`
}

// FixtureUser is a pre-registered account. It gets a "My Data" collection
// like any registered user.
type FixtureUser struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Admin    bool   `yaml:"admin"`
}

// FixtureItem is one connectivity with its detail records. Formula
// overrides the heavy-atom formula derived from the SMILES.
type FixtureItem struct {
	Smiles  string          `yaml:"smiles"`
	Formula string          `yaml:"formula"`
	Details []FixtureDetail `yaml:"details"`
}

// FixtureDetail is one stereoisomer or transition-state record.
type FixtureDetail struct {
	Smiles   string `yaml:"smiles"`
	Geometry string `yaml:"geometry"`
	SpinMult int64  `yaml:"spin_mult"`
}

// LoadFixture reads a YAML fixture file. Unknown fields are rejected.
func LoadFixture(path string) (Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	var fx Fixture
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return Fixture{}, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return fx, nil
}
