package auth

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"bureau.org/internal/domain"
)

//go:embed demo_actors.yaml
var demoActorsYAML []byte

type demoActorFile struct {
	Actors []struct {
		ID       string `yaml:"id"`
		Email    string `yaml:"email"`
		RealName string `yaml:"real_name"`
		Role     string `yaml:"role"`
		IsMaster bool   `yaml:"is_master"`
	} `yaml:"actors"`
}

// DemoActors decodes the embedded demo directory. Demo actors carry no
// password hash and therefore cannot log in.
func DemoActors() ([]domain.Actor, error) {
	return ParseActorsYAML(demoActorsYAML)
}

// ParseActorsYAML decodes an actor directory document.
func ParseActorsYAML(data []byte) ([]domain.Actor, error) {
	var file demoActorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode actor directory: %w", err)
	}
	out := make([]domain.Actor, 0, len(file.Actors))
	for i, a := range file.Actors {
		role, ok := domain.ParseRole(a.Role)
		if !ok {
			return nil, fmt.Errorf("actor directory entry %d: unknown role %q", i, a.Role)
		}
		if a.ID == "" || a.Email == "" {
			return nil, fmt.Errorf("actor directory entry %d: id and email are required", i)
		}
		out = append(out, domain.Actor{
			ID:       a.ID,
			Email:    a.Email,
			RealName: a.RealName,
			Role:     role,
			IsActive: true,
			IsMaster: a.IsMaster,
		})
	}
	return out, nil
}
