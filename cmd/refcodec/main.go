package main

import (
	"os"

	"github.com/hatemjaber/image-resize-server/internal/refcodec"
)

func main() {
	os.Exit(refcodec.Run(os.Args[1:], refcodec.Env{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		LookupEnv: os.LookupEnv,
	}))
}
