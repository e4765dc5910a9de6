package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/you/tg-faceswap/internal/config"
	"github.com/you/tg-faceswap/internal/logx"
	"github.com/you/tg-faceswap/internal/render"
)

// Runs one render outside the bot, for checking the engine setup.
func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: go run ./cmd/localtest <face.jpg> <target.mp4> <out.mp4>")
		return
	}

	_ = godotenv.Load()
	cfg := config.Load()
	logx.Setup(logx.FromEnv("localtest"))

	r, err := render.NewCommand(cfg.RenderCommand())
	if err != nil {
		panic(err)
	}
	if err := r.Render(context.Background(), os.Args[1], os.Args[2], os.Args[3]); err != nil {
		panic(err)
	}
	fmt.Println("Generated:", os.Args[3])
}
