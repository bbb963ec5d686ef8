// Command admin inspects and edits the binding database offline. Run it
// against a stopped server, or accept that the server's snapshot wins on the
// next write.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"authgate.gg/internal/export"
	"authgate.gg/internal/store"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "show":
			showCmd(os.Args[2:])
			return
		case "bind":
			bindCmd(os.Args[2:])
			return
		case "unbind":
			unbindCmd(os.Args[2:])
			return
		case "bots":
			botsCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "import":
			importCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func openStore(fs *flag.FlagSet, args []string) (*store.Store, *flag.FlagSet) {
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)
	st, err := store.Open(filepath.Join(*dataDir, "authgate.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	return st, fs
}

func listCmd(args []string) {
	st, _ := openStore(flag.NewFlagSet("admin", flag.ExitOnError), args)
	defer st.Close()

	players, err := st.AllPlayers()
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, p := range players {
		qq := "-"
		if p.QQ != 0 {
			qq = strconv.FormatInt(p.QQ, 10)
		}
		fmt.Printf("%-20s %s qq=%s\n", p.Name, p.UUID, qq)
	}
	fmt.Printf("%d players\n", len(players))
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	name := fs.String("name", "", "player name")
	st, _ := openStore(fs, args)
	defer st.Close()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "missing -name")
		os.Exit(2)
	}
	p, found, err := st.PlayerByName(*name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lookup:", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintln(os.Stderr, "unknown player:", *name)
		os.Exit(1)
	}
	fmt.Printf("name:    %s\n", p.Name)
	fmt.Printf("uuid:    %s\n", p.UUID)
	if p.QQ != 0 {
		fmt.Printf("qq:      %d\n", p.QQ)
	} else {
		fmt.Println("qq:      (unbound)")
	}
	fmt.Printf("created: %s\n", p.CreatedAt.Format(time.RFC3339))

	bots, err := st.BotsByOwner(p.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bots:", err)
		os.Exit(1)
	}
	for _, b := range bots {
		fmt.Printf("bot:     %s (%s)\n", b.Name, b.UUID)
	}
}

func bindCmd(args []string) {
	fs := flag.NewFlagSet("bind", flag.ExitOnError)
	name := fs.String("name", "", "player name")
	qq := fs.Int64("qq", 0, "qq number")
	st, _ := openStore(fs, args)
	defer st.Close()

	if *name == "" || *qq <= 0 {
		fmt.Fprintln(os.Stderr, "missing -name or -qq")
		os.Exit(2)
	}
	if err := st.EnsurePlayer(*name, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "ensure player:", err)
		os.Exit(1)
	}
	if err := st.SetBindingByName(*name, *qq); err != nil {
		fmt.Fprintln(os.Stderr, "bind:", err)
		os.Exit(1)
	}
	fmt.Printf("bound %s to %d\n", *name, *qq)
}

func unbindCmd(args []string) {
	fs := flag.NewFlagSet("unbind", flag.ExitOnError)
	name := fs.String("name", "", "player name")
	st, _ := openStore(fs, args)
	defer st.Close()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "missing -name")
		os.Exit(2)
	}
	if err := st.SetBindingByName(*name, 0); err != nil {
		fmt.Fprintln(os.Stderr, "unbind:", err)
		os.Exit(1)
	}
	fmt.Printf("unbound %s\n", *name)
}

func botsCmd(args []string) {
	fs := flag.NewFlagSet("bots", flag.ExitOnError)
	owner := fs.String("owner", "", "owner name (optional)")
	st, _ := openStore(fs, args)
	defer st.Close()

	var bots []store.Bot
	var err error
	if *owner != "" {
		bots, err = st.BotsByOwner(*owner)
	} else {
		bots, err = st.AllBots()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "bots:", err)
		os.Exit(1)
	}
	for _, b := range bots {
		fmt.Printf("%-20s owner=%s %s\n", b.Name, b.OwnerName, b.UUID)
	}
	fmt.Printf("%d bots\n", len(bots))
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "players.csv", "output path (.csv or .csv.zst)")
	st, _ := openStore(fs, args)
	defer st.Close()

	players, err := st.AllPlayers()
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	if err := export.WriteFile(*out, players); err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}
	fmt.Printf("exported %d players to %s\n", len(players), *out)
}

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("in", "players.csv", "input path (.csv or .csv.zst)")
	st, _ := openStore(fs, args)
	defer st.Close()

	players, err := export.ReadFile(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	for _, p := range players {
		if err := st.UpsertPlayer(p.Name, p.UUID, p.CreatedAt); err != nil {
			fmt.Fprintln(os.Stderr, "upsert", p.Name+":", err)
			os.Exit(1)
		}
		if p.QQ != 0 {
			if err := st.SetBinding(p.UUID, p.QQ); err != nil {
				fmt.Fprintln(os.Stderr, "bind", p.Name+":", err)
				os.Exit(1)
			}
		}
	}
	fmt.Printf("imported %d players from %s\n", len(players), *in)
}
