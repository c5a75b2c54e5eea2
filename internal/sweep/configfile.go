package sweep

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigurationFileName is the document committed into every repository.
	ConfigurationFileName = "socket.yml"

	configurationFileContentConstant     = "version: 2\ngithubApp: false\n"
	configurationFilePermissionsConstant = 0o644

	configurationFileWriteTemplateConstant     = "unable to write %s: %w"
	configurationFileReadBackTemplateConstant  = "unable to read back %s: %w"
	configurationFileMismatchTemplateConstant  = "%s content differs from the expected document after writing"
	configurationFileYAMLErrorTemplateConstant = "%s is not parseable YAML after writing: %w"
	configurationFileVersionKeyConstant        = "version"
	configurationFileAppKeyConstant            = "githubApp"
	configurationFileShapeTemplateConstant     = "%s is missing the %s key after writing"
)

// ConfigurationFileContent returns the exact document written into each
// repository: a versioned two-line YAML file that switches the GitHub app
// integration off.
func ConfigurationFileContent() string {
	return configurationFileContentConstant
}

// WriteConfigurationFile writes the scanner configuration document into
// repositoryPath and verifies the written bytes round-trip both literally and
// as YAML before reporting success.
func WriteConfigurationFile(repositoryPath string) (string, error) {
	configurationFilePath := filepath.Join(repositoryPath, ConfigurationFileName)

	writeError := os.WriteFile(configurationFilePath, []byte(configurationFileContentConstant), configurationFilePermissionsConstant)
	if writeError != nil {
		return configurationFilePath, fmt.Errorf(configurationFileWriteTemplateConstant, ConfigurationFileName, writeError)
	}

	writtenContent, readError := os.ReadFile(configurationFilePath)
	if readError != nil {
		return configurationFilePath, fmt.Errorf(configurationFileReadBackTemplateConstant, ConfigurationFileName, readError)
	}
	if !bytes.Equal(bytes.TrimSpace(writtenContent), bytes.TrimSpace([]byte(configurationFileContentConstant))) {
		return configurationFilePath, fmt.Errorf(configurationFileMismatchTemplateConstant, ConfigurationFileName)
	}

	var parsedDocument map[string]any
	if yamlError := yaml.Unmarshal(writtenContent, &parsedDocument); yamlError != nil {
		return configurationFilePath, fmt.Errorf(configurationFileYAMLErrorTemplateConstant, ConfigurationFileName, yamlError)
	}
	for _, requiredKey := range []string{configurationFileVersionKeyConstant, configurationFileAppKeyConstant} {
		if _, keyPresent := parsedDocument[requiredKey]; !keyPresent {
			return configurationFilePath, fmt.Errorf(configurationFileShapeTemplateConstant, ConfigurationFileName, requiredKey)
		}
	}

	return configurationFilePath, nil
}
