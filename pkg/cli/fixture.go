package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/apiflow/pkg/assert"
	"github.com/dshills/apiflow/pkg/env"
	"github.com/dshills/apiflow/pkg/snapshot"
)

// Fixture is the YAML document the run command consumes: one request, its
// scripts, its assertions, and either an inline environment or a reference
// to a stored one.
type Fixture struct {
	Name          string             `yaml:"name"`
	Request       fixtureRequest     `yaml:"request"`
	EnvironmentID string             `yaml:"environmentId"`
	Environment   *fixtureEnv        `yaml:"environment"`
	PreScript     string             `yaml:"preScript"`
	PostScript    string             `yaml:"postScript"`
	Assertions    []fixtureAssertion `yaml:"assertions"`
}

type fixtureRequest struct {
	Method   string          `yaml:"method"`
	URL      string          `yaml:"url"`
	Headers  []fixtureHeader `yaml:"headers"`
	Body     string          `yaml:"body"`
	BodyType string          `yaml:"bodyType"`
	Auth     *snapshot.Auth  `yaml:"auth"`
}

// fixtureHeader and friends use *bool for enabled so an omitted flag means
// enabled, not disabled.
type fixtureHeader struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Enabled *bool  `yaml:"enabled"`
}

type fixtureEnv struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Variables []fixtureVariable `yaml:"variables"`
}

type fixtureVariable struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Enabled *bool  `yaml:"enabled"`
}

type fixtureAssertion struct {
	ID       string      `yaml:"id"`
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`
	Target   string      `yaml:"target"`
	Operator string      `yaml:"operator"`
	Expected interface{} `yaml:"expected"`
	Enabled  *bool       `yaml:"enabled"`
}

// LoadFixture reads and decodes a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	if f.Request.URL == "" {
		return nil, fmt.Errorf("fixture %s: request.url is required", path)
	}
	return &f, nil
}

// RequestSnapshot converts the fixture request into engine input.
func (f *Fixture) RequestSnapshot() *snapshot.RequestSnapshot {
	req := &snapshot.RequestSnapshot{
		Method:   f.Request.Method,
		URL:      f.Request.URL,
		Body:     f.Request.Body,
		BodyType: f.Request.BodyType,
		Auth:     f.Request.Auth,
	}
	for _, h := range f.Request.Headers {
		req.Headers = append(req.Headers, snapshot.Header{
			Key:     h.Key,
			Value:   h.Value,
			Enabled: enabled(h.Enabled),
		})
	}
	return req
}

// InlineEnvironment converts the fixture's inline environment, if any.
func (f *Fixture) InlineEnvironment() *env.Environment {
	if f.Environment == nil {
		return nil
	}
	e := &env.Environment{
		ID:   f.Environment.ID,
		Name: f.Environment.Name,
	}
	for _, v := range f.Environment.Variables {
		e.Variables = append(e.Variables, env.Variable{
			Key:     v.Key,
			Value:   v.Value,
			Enabled: enabled(v.Enabled),
		})
	}
	return e
}

// AssertionList converts the fixture assertions into engine input. Fixture
// entries without an id get a generated one so results stay addressable.
func (f *Fixture) AssertionList() []assert.Assertion {
	assertions := make([]assert.Assertion, 0, len(f.Assertions))
	for _, fa := range f.Assertions {
		a := assert.New(fa.Name, assert.Type(fa.Type), fa.Target, assert.Operator(fa.Operator), fa.Expected)
		if fa.ID != "" {
			a.ID = fa.ID
		}
		a.Enabled = enabled(fa.Enabled)
		assertions = append(assertions, a)
	}
	return assertions
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}
