/*
Copyright (C) 2025  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/coldrun/objectstore/coredb"
	"github.com/coldrun/objectstore/holder"
)

const newprompt = "\033[32mcoldstore>\033[0m "
const resultprompt = "\033[31m=\033[0m "

func main() {
	dir := flag.String("dir", "./db", "database directory")
	fresh := flag.Bool("fresh", false, "force a fresh database, discarding any existing one")
	flag.Parse()

	coredb.InitSettings()
	db, err := coredb.Open(*dir, *fresh)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	fmt.Print(`coldstore shell
    get N | put N body | del N | check N | flush | cleanup | exit
`)
	repl(db)
}

func repl(db *coredb.DB) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".coldstore-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			break
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("error:", r)
				}
			}()
			runCommand(db, line)
		}()
	}
}

func runCommand(db *coredb.DB, line string) {
	fields := strings.SplitN(line, " ", 3)
	switch fields[0] {
	case "get":
		n := parseObjNum(fields, 1)
		body, ok := db.Get(n)
		if !ok {
			fmt.Println(resultprompt + "none")
			return
		}
		fmt.Printf("%s%q\n", resultprompt, body)
	case "put":
		if len(fields) < 3 {
			fmt.Println("usage: put N body")
			return
		}
		n := parseObjNum(fields, 1)
		if err := db.Put(n, []byte(fields[2])); err != nil {
			panic(err)
		}
		fmt.Println(resultprompt + "ok")
	case "del":
		n := parseObjNum(fields, 1)
		if err := db.Del(n); err != nil {
			panic(err)
		}
		fmt.Println(resultprompt + "ok")
	case "check":
		n := parseObjNum(fields, 1)
		fmt.Printf("%s%v\n", resultprompt, db.Check(n))
	case "flush":
		if err := db.Flush(); err != nil {
			panic(err)
		}
		fmt.Println(resultprompt + "ok")
	case "cleanup":
		db.Cleanup()
		fmt.Println(resultprompt + "ok")
	default:
		fmt.Println("unknown command:", fields[0])
	}
}

func parseObjNum(fields []string, idx int) holder.ObjNum {
	if idx >= len(fields) {
		panic("missing object number argument")
	}
	n, err := strconv.ParseInt(fields[idx], 10, 64)
	if err != nil {
		panic("not a valid object number: " + fields[idx])
	}
	return holder.ObjNum(n)
}
