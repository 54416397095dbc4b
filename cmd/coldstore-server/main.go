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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coldrun/objectstore/coredb"
)

func main() {
	dir := flag.String("dir", "./db", "database directory")
	fresh := flag.Bool("fresh", false, "force a fresh database, discarding any existing one")
	cleanupInterval := flag.Duration("cleanup-interval", 5*time.Second, "interval between cache cleanup sweeps")
	flushInterval := flag.Duration("flush-interval", time.Minute, "interval between automatic flushes")
	bucket := flag.String("s3-bucket", "", "optional S3 bucket for off-box archival after each flush")
	prefix := flag.String("s3-prefix", "backups", "S3 key prefix for archival snapshots")
	flag.Parse()

	coredb.InitSettings()
	if *bucket != "" {
		coredb.Settings.ArchiveBackend = "s3"
	}

	db, err := coredb.Open(*dir, *fresh)
	if err != nil {
		panic(err)
	}

	if *bucket != "" {
		db.SetArchiver(&coredb.S3Archiver{Bucket: *bucket, Prefix: *prefix})
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	cleanupTicker := time.NewTicker(*cleanupInterval)
	flushTicker := time.NewTicker(*flushInterval)
	defer cleanupTicker.Stop()
	defer flushTicker.Stop()

	fmt.Printf("coldstore-server: serving %s (pid %d)\n", *dir, os.Getpid())

loop:
	for {
		select {
		case <-cleanupTicker.C:
			db.Cleanup()
		case <-flushTicker.C:
			if err := db.Flush(); err != nil {
				fmt.Println("coldstore-server: flush failed:", err)
			}
		case sig := <-stop:
			fmt.Println("coldstore-server: received", sig, "shutting down")
			break loop
		}
	}

	if err := db.Close(); err != nil {
		fmt.Println("coldstore-server: close failed:", err)
		os.Exit(1)
	}
}
