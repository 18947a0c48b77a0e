package main

import "rentora_backend/internal/app"

func main() {
	app.Run()
}
