// keeper evaluates permission snapshots offline from fixture files.
//
// A fixture is a YAML (or JSON) document holding the inputs of one space:
//
//	power_levels: {users: {"@alice:example.org": 100}, redact: 50}
//	roles:        {adminLevel: 100, definitions: [...], memberRoleIds: {...}}
//	overrides:    {categories: {...}, rooms: {...}}
//
// Every section is optional and is normalized the same way the engine
// normalizes stored settings.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/xraph/keeper/permission"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// fixture is the raw shape of a fixture file. Sections stay untyped so they
// go through the same normalization as untrusted stored settings.
type fixture struct {
	PowerLevels any `yaml:"power_levels"`
	Roles       any `yaml:"roles"`
	Overrides   any `yaml:"overrides"`
}

// output is what the CLI prints.
type output struct {
	UserID            string               `json:"userId"`
	Snapshot          permission.Snapshot  `json:"snapshot"`
	Decision          *permission.Decision `json:"decision,omitempty"`
	CanRedact         *bool                `json:"canRedact,omitempty"`
	CanDeleteChannels bool                 `json:"canDeleteChannels"`
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		fixturePath  string
		userID       string
		membership   string
		roomID       string
		categoryID   string
		action       string
		redactAuthor string
		verbose      bool
	)

	flagSet := pflag.NewFlagSet("keeper", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&fixturePath, "fixture", "f", "", "path to a YAML or JSON fixture (required)")
	flagSet.StringVarP(&userID, "user", "u", "", "user to evaluate (required)")
	flagSet.StringVarP(&membership, "membership", "m", string(permission.MembershipJoin), "room membership of the user")
	flagSet.StringVar(&roomID, "room", "", "room whose rules apply")
	flagSet.StringVar(&categoryID, "category", permission.DefaultCategoryID, "category whose rules apply")
	flagSet.StringVarP(&action, "action", "a", "", "explain a single action")
	flagSet.StringVar(&redactAuthor, "redact-author", "", "also decide whether the user may redact a message by this author")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log evaluation details to stderr")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if fixturePath == "" || userID == "" {
		return errors.New("--fixture and --user are required")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	fx, err := loadFixture(fixturePath)
	if err != nil {
		return err
	}

	in, err := fx.input(userID, permission.ParseMembership(membership), categoryID, roomID)
	if err != nil {
		return err
	}
	logger.Debug("evaluating snapshot",
		"user", userID,
		"membership", in.Membership,
		"room", roomID,
		"category", categoryID,
		"category_rules", len(in.CategoryRules),
		"room_rules", len(in.RoomRules),
	)

	out := output{
		UserID:            userID,
		Snapshot:          permission.Build(in),
		CanDeleteChannels: permission.CanDeleteChannels(in),
	}
	if action != "" {
		a, err := permission.ParseAction(action)
		if err != nil {
			return err
		}
		d := permission.Explain(in, a)
		out.Decision = &d
	}
	if flagSet.Changed("redact-author") {
		ok := permission.CanRedactMessage(out.Snapshot, redactAuthor, userID)
		out.CanRedact = &ok
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &fx, nil
}

// input normalizes the fixture sections for one user. YAML sections are
// re-encoded as JSON first so numbers and maps take the same shape they
// have when read from a homeserver or the settings store.
func (fx *fixture) input(userID string, m permission.Membership, categoryID, roomID string) (permission.Input, error) {
	pl, err := asJSON(fx.PowerLevels)
	if err != nil {
		return permission.Input{}, fmt.Errorf("power_levels: %w", err)
	}
	roles, err := asJSON(fx.Roles)
	if err != nil {
		return permission.Input{}, fmt.Errorf("roles: %w", err)
	}
	rules, err := asJSON(fx.Overrides)
	if err != nil {
		return permission.Input{}, fmt.Errorf("overrides: %w", err)
	}

	in := permission.Input{
		UserID:      userID,
		Membership:  m,
		PowerLevels: permission.ParsePowerLevels(pl),
		Roles:       permission.NormalizeRoleSettings(roles),
	}
	in.CategoryRules, in.RoomRules = permission.NormalizeOverrides(rules).Rules(categoryID, roomID)
	return in, nil
}

func asJSON(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
