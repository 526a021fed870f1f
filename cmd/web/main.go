package main

import "stitchhub_backend/internal/app"

func main() {
	app.Run()
}
