package toolsession

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerDefinition_Environment(t *testing.T) {
	d := GitHubServer()
	d.Env = map[string]string{
		"GITHUB_TOOLSETS":              "repos",
		"GITHUB_PERSONAL_ACCESS_TOKEN": "static-should-be-ignored",
	}

	env := d.environment("gho_live")
	assert.Equal(t, []string{"GITHUB_TOOLSETS=repos", "GITHUB_PERSONAL_ACCESS_TOKEN=gho_live"}, env)
}

func TestServerDefinition_Validate(t *testing.T) {
	assert.NoError(t, GitHubServer().Validate())
	assert.Error(t, ServerDefinition{Service: "x", Command: "y"}.Validate())
	assert.Error(t, ServerDefinition{Service: "x", TokenEnv: "T"}.Validate())
	assert.Error(t, ServerDefinition{Command: "y", TokenEnv: "T"}.Validate())
	assert.Error(t, ServerDefinition{Service: "b:c", Command: "y", TokenEnv: "T"}.Validate())
}
