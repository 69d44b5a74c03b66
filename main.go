package main

import (
	"flag"
	"log"
)

var (
	GitCommit string
	GitTag    string
	BuildTime string
)

// @title                       Library Catalog API
// @version                     1.0
// @description                 Public catalog and staff administration of a small library.
// @BasePath                    /
// @securityDefinitions.basic   BasicAuth
func main() {
	fixture := flag.String("loaddata", "", "path of a YAML fixture file to install before exiting")
	flag.Parse()

	app, err := NewApp()
	if err != nil {
		log.Fatal("application failed to initialized: ", err)
	}
	if *fixture != "" {
		if err = app.LoadData(*fixture); err != nil {
			log.Fatal("failed to load fixture. check logs for more details. ", err)
		}
		return
	}
	err = app.Run()
	if err != nil {
		log.Fatal("application exited. check logs for more details.", err)
	}
}
