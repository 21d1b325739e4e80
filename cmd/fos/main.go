package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/financeos/fos/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cli.Execute()
}
