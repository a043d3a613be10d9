package probe

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModelID = "amazon.titan-embed-text-v2:0"
	DefaultText    = "The patient was admitted with a history of heart failure and shortness of breath."
)

type Config struct {
	ModelID string `yaml:"model_id"`
	// ModelIDParameter names an SSM parameter holding the model id. Ignored when ModelID is set.
	ModelIDParameter string `yaml:"model_id_parameter"`
	Region           string `yaml:"region"`
	Text             string `yaml:"text"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Text: DefaultText,
	}
}

// LoadFromYAML overlays the file's values on c.
func (c *Config) LoadFromYAML(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return yaml.NewDecoder(file).Decode(c)
}
