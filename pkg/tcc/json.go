package tcc

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// ConvertJSONFileToConfig opens a file.json and converts to PoolSeasoning.
func ConvertJSONFileToConfig(fileNamePath string) (*PoolSeasoning, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := &PoolSeasoning{}
	var json = jsoniter.ConfigFastest
	err = json.Unmarshal(byteValue, config)

	return config, err
}

// ConvertYAMLFileToConfig opens a file.yml and converts to PoolSeasoning.
func ConvertYAMLFileToConfig(fileNamePath string) (*PoolSeasoning, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := &PoolSeasoning{}
	err = yaml.Unmarshal(byteValue, config)

	return config, err
}

// ConnectionParametersFromConfig builds the immutable parameters the
// ConnectionManager holds from a loaded ConnectionConfig.
func ConnectionParametersFromConfig(config *ConnectionConfig) ConnectionParameters {
	return ConnectionParameters{
		Address:        config.Address,
		Username:       config.Username,
		Password:       config.Password,
		ConnectTimeout: time.Duration(config.ConnectTimeout) * time.Second,
		Options:        config.Options,
	}
}
