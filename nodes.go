package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/deemkeen/chartreuse/util"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const generatedPasswordLength = 32

type nodeFlags struct {
	host      string
	username  string
	password  string
	direction string
	disabled  bool
}

func (f nodeFlags) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.host, validation.Required, is.RequestURL),
		validation.Field(&f.direction, validation.Required, validation.By(func(value interface{}) error {
			_, err := domain.ParseDirection(value.(string))
			return err
		})),
	)
}

func (c *cli) nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage the peer nodes this node federates with",
	}
	cmd.AddCommand(
		c.nodeAddCmd(),
		c.nodeListCmd(),
		c.nodeStatusCmd("enable", domain.ENABLED),
		c.nodeStatusCmd("disable", domain.DISABLED),
		c.nodeRemoveCmd(),
	)
	return cmd
}

func (c *cli) nodeAddCmd() *cobra.Command {
	var f nodeFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a peer node",
		Long: `Register a peer node.

An OUTGOING node is one this node delivers to; username and password are the
credentials the peer gave us. An INCOMING node may deliver to our inboxes with
the given credentials. Without --password a random one is generated and
printed, so it can be handed to the peer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return err
			}
			direction, _ := domain.ParseDirection(f.direction)
			generated := false
			if f.password == "" {
				f.password = util.RandomString(generatedPasswordLength)
				generated = true
			}

			database, err := c.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			n := &domain.Node{
				Host:      f.host,
				Username:  f.username,
				Password:  f.password,
				Direction: direction,
				Status:    domain.ENABLED,
			}
			if f.disabled {
				n.Status = domain.DISABLED
			}
			if err := database.CreateNode(cmd.Context(), n); err != nil {
				return fmt.Errorf("add node %s (%s): %w", n.Host, n.Direction, err)
			}
			log.Info().Str("host", n.Host).Str("direction", string(n.Direction)).Msg("Node added")

			fmt.Fprintf(cmd.OutOrStdout(), "added %s node %s (%s)\n", n.Direction, n.Host, n.Status)
			if generated {
				fmt.Fprintf(cmd.OutOrStdout(), "generated password: %s\n", n.Password)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.host, "host", "", "API root of the peer, e.g. https://peer.example/chartreuse/api/")
	cmd.Flags().StringVar(&f.username, "username", "", "username of the link")
	cmd.Flags().StringVar(&f.password, "password", "", "password of the link (generated when empty)")
	cmd.Flags().StringVar(&f.direction, "direction", "", "INCOMING or OUTGOING")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "register the node disabled")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("direction")
	return cmd
}

func (c *cli) nodeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered peer nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := c.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			nodes, err := database.ReadNodes(cmd.Context())
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no nodes registered")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("HOST", "DIRECTION", "STATUS", "USERNAME", "ADDED")
			for _, n := range nodes {
				t.Row(n.Host, string(n.Direction), string(n.Status), n.Username, n.CreatedAt.Format(util.DateTimeFormat()))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

// nodeKey reads the --host and --direction flags shared by enable, disable
// and remove.
func nodeKey(cmd *cobra.Command, f *nodeFlags) {
	cmd.Flags().StringVar(&f.host, "host", "", "API root of the peer")
	cmd.Flags().StringVar(&f.direction, "direction", "", "INCOMING or OUTGOING")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("direction")
}

func (c *cli) nodeStatusCmd(use string, status domain.NodeStatus) *cobra.Command {
	var f nodeFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Mark a peer node %s", strings.ToLower(string(status))),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withNode(cmd.Context(), f, func(ctx context.Context, q nodeWriter, direction domain.NodeDirection) error {
				if err := q.UpdateNodeStatus(ctx, f.host, direction, status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s node %s is now %s\n", direction, domain.NormalizeHost(f.host), status)
				return nil
			})
		},
	}
	nodeKey(cmd, &f)
	return cmd
}

func (c *cli) nodeRemoveCmd() *cobra.Command {
	var f nodeFlags
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a peer node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withNode(cmd.Context(), f, func(ctx context.Context, q nodeWriter, direction domain.NodeDirection) error {
				if err := q.DeleteNode(ctx, f.host, direction); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s node %s\n", direction, domain.NormalizeHost(f.host))
				return nil
			})
		},
	}
	nodeKey(cmd, &f)
	return cmd
}

type nodeWriter interface {
	UpdateNodeStatus(ctx context.Context, host string, direction domain.NodeDirection, status domain.NodeStatus) error
	DeleteNode(ctx context.Context, host string, direction domain.NodeDirection) error
}

func (c *cli) withNode(ctx context.Context, f nodeFlags, fn func(context.Context, nodeWriter, domain.NodeDirection) error) error {
	if err := f.Validate(); err != nil {
		return err
	}
	direction, _ := domain.ParseDirection(f.direction)

	database, err := c.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := fn(ctx, database, direction); errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("no %s node %s registered", direction, domain.NormalizeHost(f.host))
	} else if err != nil {
		return fmt.Errorf("node %s (%s): %w", domain.NormalizeHost(f.host), direction, err)
	}
	log.Info().Str("host", f.host).Str("direction", string(direction)).Msg("Node updated")
	return nil
}
