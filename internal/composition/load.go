package composition

import "os"

// Load reads the file at path and parses it, the only I/O the composition
// loader performs; Parse itself stays pure per spec.md §4.1.
func Load(path string) (*Composition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data), path)
}
