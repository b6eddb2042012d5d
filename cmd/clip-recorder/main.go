package main

import (
	"github.com/interviewdeck/clip-recorder/internal/app"
)

func main() {
	app.Main()
}
