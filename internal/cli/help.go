// ABOUTME: Kong help printer with lipgloss styling
// ABOUTME: Renders usage, commands, arguments and flags in the airflow theme
package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Ice).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(Steel).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Breeze).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(Ice).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(Warm).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(Steel).
				Italic(true)
)

// StyledHelpPrinter creates a kong help printer with lipgloss styling
func StyledHelpPrinter(title string) kong.HelpPrinter {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		node := ctx.Selected()
		if node == nil {
			node = ctx.Model.Node
		}

		var sb strings.Builder

		sb.WriteString(helpTitleStyle.Render(title))
		sb.WriteString("\n")
		if help := nodeHelp(node, ctx); help != "" {
			sb.WriteString(helpDescStyle.Render(help))
			sb.WriteString("\n")
		}

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(usage(node, ctx))
		sb.WriteString("\n")

		if cmds := commands(node); len(cmds) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Commands:"))
			sb.WriteString("\n")
			for _, c := range cmds {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(fmt.Sprintf("%-10s", c.name)))
				sb.WriteString("  ")
				sb.WriteString(c.help)
				sb.WriteString("\n")
			}
		}

		if args := arguments(node); len(args) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			for _, arg := range args {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(arg.name))
				if arg.help != "" {
					sb.WriteString("  ")
					sb.WriteString(arg.help)
				}
				sb.WriteString("\n")
			}
		}

		if flags := flags(node); len(flags) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Flags:"))
			sb.WriteString("\n")
			for _, f := range flags {
				sb.WriteString("  ")
				sb.WriteString(helpFlagStyle.Render(f.flags))
				if f.help != "" {
					sb.WriteString("  ")
					sb.WriteString(f.help)
				}
				if f.defaultVal != "" {
					sb.WriteString(" ")
					sb.WriteString(helpDefaultStyle.Render("(default: " + f.defaultVal + ")"))
				}
				sb.WriteString("\n")
			}
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type command struct {
	name string
	help string
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
}

func nodeHelp(node *kong.Node, ctx *kong.Context) string {
	if node.Help != "" {
		return node.Help
	}
	return ctx.Model.Help
}

func usage(node *kong.Node, ctx *kong.Context) string {
	parts := []string{ctx.Model.Name}
	if node != ctx.Model.Node {
		parts = append(parts, node.Name)
	}
	if len(commands(node)) > 0 {
		parts = append(parts, "<command>")
	}
	for _, arg := range node.Positional {
		parts = append(parts, arg.Summary())
	}
	parts = append(parts, "[flags]")
	return strings.Join(parts, " ")
}

func commands(node *kong.Node) []command {
	var out []command
	for _, child := range node.Children {
		if child.Hidden || child.Type != kong.CommandNode {
			continue
		}
		out = append(out, command{name: child.Name, help: child.Help})
	}
	return out
}

func arguments(node *kong.Node) []argument {
	var args []argument
	for _, arg := range node.Positional {
		args = append(args, argument{name: arg.Summary(), help: arg.Help})
	}
	return args
}

func flags(node *kong.Node) []flag {
	out := []flag{{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
	}}

	for _, group := range node.AllFlags(true) {
		for _, f := range group {
			if f.Name == "help" {
				continue
			}

			flagStr := ""
			if f.Short != 0 {
				flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
			} else {
				flagStr = fmt.Sprintf("--%s", f.Name)
			}

			if !f.IsBool() && f.PlaceHolder != "" {
				flagStr += "=" + strings.ToUpper(f.PlaceHolder)
			}

			defaultVal := ""
			if f.HasDefault && !f.IsBool() && f.Default != "" {
				defaultVal = f.Default
			}

			out = append(out, flag{
				flags:      flagStr,
				help:       f.Help,
				defaultVal: defaultVal,
			})
		}
	}

	return out
}
