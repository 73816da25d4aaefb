package main

import (
	"embed"
	"log"
	"path/filepath"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"

	"itinerary-planner/internal/database"
)

//go:embed frontend/*
var assets embed.FS

func main() {
	app := NewApp()

	err := wails.Run(&options.App{
		Title:     "Itinerary Planner",
		Width:     1280,
		Height:    800,
		MinWidth:  800,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar: mac.TitleBarDefault(),
			About: &mac.AboutInfo{
				Title:   "Itinerary Planner",
				Message: "Plan a day of stops with routes and a timed schedule",
			},
		},
		Windows: &windows.Options{
			WebviewUserDataPath: webviewDataPath(),
		},
		Linux: &linux.Options{
			ProgramName:      "itinerary-planner",
			WebviewGpuPolicy: linux.WebviewGpuPolicyAlways,
		},
	})

	if err != nil {
		log.Fatal(err)
	}
}

// webviewDataPath keeps WebView2 state next to the planner data
func webviewDataPath() string {
	dir, err := database.GetAppDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "webview")
}
