package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/stlalpha/v3toss/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage("")
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "--version", "-version", "version":
		printHeader()
		return
	case "--help", "-h", "help":
		printUsage("")
		return
	}

	var err error
	switch cmd {
	case "toss":
		err = cmdToss(os.Args[2:])
	case "pack":
		err = cmdPack(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	case "nodelist":
		err = cmdNodelist(os.Args[2:])
	case "route":
		err = cmdRoute(os.Args[2:])
	default:
		printUsage(fmt.Sprintf("Unknown command: %s", cmd))
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.errorLine.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// palette holds the CLI styles. Colour is only used on a terminal.
type palette struct {
	header    lipgloss.Style
	bullet    lipgloss.Style
	text      lipgloss.Style
	section   lipgloss.Style
	label     lipgloss.Style
	good      lipgloss.Style
	bad       lipgloss.Style
	errorLine lipgloss.Style
}

var styles = newPalette(term.IsTerminal(int(os.Stdout.Fd())))

func newPalette(colour bool) palette {
	plain := lipgloss.NewStyle()
	if !colour {
		return palette{plain, plain, plain, plain, plain, plain, plain, plain}
	}
	return palette{
		header:    plain.Bold(true),
		bullet:    plain.Foreground(lipgloss.Color("5")),
		text:      plain.Foreground(lipgloss.Color("6")),
		section:   plain.Bold(true),
		label:     plain.Foreground(lipgloss.Color("14")),
		good:      plain.Foreground(lipgloss.Color("10")),
		bad:       plain.Foreground(lipgloss.Color("9")),
		errorLine: plain.Foreground(lipgloss.Color("9")).Bold(true),
	}
}

const separator = "────────────────────────────────────────────────────────────────────────────"

func printHeader() {
	fmt.Fprintln(os.Stderr, styles.header.Render(fmt.Sprintf("%s FidoNet Tosser v%s  ·  MIT License", version.Name, version.Number)))
	fmt.Fprintln(os.Stderr, separator)
}

func bullet(msg string) string {
	return styles.bullet.Render("■") + "  " + styles.text.Render(msg)
}

func cmdLine(name, desc string) string {
	return "  " + styles.label.Render(fmt.Sprintf("%-10s", name)) + " - " + styles.text.Render(desc)
}

func opt(flag, desc string) string {
	return "  " + styles.label.Render(fmt.Sprintf("%-18s", flag)) + " " + styles.text.Render(desc)
}

func printUsage(errMsg string) {
	w := os.Stderr
	printHeader()
	fmt.Fprintln(w)
	if errMsg != "" {
		fmt.Fprintln(w, bullet(errMsg))
	}
	fmt.Fprintln(w, bullet("Required Format: v3toss <command> [options] [files...]"))
	fmt.Fprintln(w, bullet("Valid Commands Are As Follows..."))
	fmt.Fprintln(w)
	fmt.Fprintln(w, cmdLine("TOSS", "Toss inbound packets, bundles and files (or the given files)"))
	fmt.Fprintln(w, cmdLine("PACK", "Spool pending echomail and netmail for every link"))
	fmt.Fprintln(w, cmdLine("SERVE", "Watch the inbound, poll links on schedule, serve /metrics"))
	fmt.Fprintln(w, cmdLine("NODELIST", "Look up addresses in the configured nodelist"))
	fmt.Fprintln(w, cmdLine("ROUTE", "Show the link netmail to each address leaves through"))
	fmt.Fprintln(w, cmdLine("VERSION", "Print the version"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.section.Render("  Global Options:"))
	fmt.Fprintln(w, opt("--config DIR", "Config directory containing toss.json (default: configs)"))
	fmt.Fprintln(w, opt("-q", "Suppress output"))
	fmt.Fprintln(w)
}
