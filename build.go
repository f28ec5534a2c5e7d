//go:build ignore

// build.go - CasePulse build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, web, cli, test, clean, package

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const versionPkg = "casepulse/pkg/contracts"

var (
	rootDir string
	distDir string

	// key = directory under cmd/, value = output name without extension
	executables = map[string]string{
		"casepulse": "casepulse",
		"casectl":   "casectl",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		printError(fmt.Sprintf("Failed to get current directory: %v", err))
		os.Exit(1)
	}
	rootDir = cwd
	distDir = filepath.Join(rootDir, "dist")

	printHeader()
	start := time.Now()

	switch *target {
	case "all":
		runTests(*verbose)
		for name := range executables {
			buildExecutable(name, *verbose)
		}
	case "web":
		buildExecutable("casepulse", *verbose)
	case "cli":
		buildExecutable("casectl", *verbose)
	case "test":
		runTests(*verbose)
	case "clean":
		clean()
	case "package":
		for name := range executables {
			buildExecutable(name, *verbose)
		}
		copyConfigFiles()
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(start).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "        CasePulse - Build System          " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func buildExecutable(name string, verbose bool) {
	exeName, ok := executables[name]
	if !ok {
		printError(fmt.Sprintf("Unknown executable: %s", name))
		os.Exit(1)
	}
	if runtime.GOOS == "windows" {
		exeName += ".exe"
	}

	printInfo(fmt.Sprintf("Building %s...", name))

	if err := os.MkdirAll(distDir, 0755); err != nil {
		printError(fmt.Sprintf("Failed to create dist directory: %v", err))
		os.Exit(1)
	}

	outputPath := filepath.Join(distDir, exeName)
	ldflags := fmt.Sprintf("-s -w -X %s.BuildTime=%s -X %s.GitCommit=%s",
		versionPkg, time.Now().UTC().Format(time.RFC3339), versionPkg, gitCommit())

	args := []string{"build"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "-ldflags", ldflags, "-o", outputPath, "./cmd/"+name)

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	if verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.2f MB)", exeName, float64(info.Size())/1024/1024))
	}
}

func runTests(verbose bool) {
	printInfo("Running Go tests...")

	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
}

func clean() {
	printInfo("Cleaning build artifacts and logs...")

	for _, dir := range []string{distDir, filepath.Join(rootDir, "logs")} {
		if err := os.RemoveAll(dir); err != nil {
			printError(fmt.Sprintf("Failed to remove %s: %v", dir, err))
		}
	}
}

// copyConfigFiles puts the sample config and case file next to the binaries.
func copyConfigFiles() {
	files := map[string]string{
		filepath.Join(rootDir, "configs", "casepulse.yaml"):        filepath.Join(distDir, "casepulse.yaml"),
		filepath.Join(rootDir, "Dataset", "IndividualDetails.csv"): filepath.Join(distDir, "Dataset", "IndividualDetails.csv"),
	}

	for src, dst := range files {
		data, err := os.ReadFile(src)
		if err != nil {
			printWarning(fmt.Sprintf("Skipping %s: %v", src, err))
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			printError(fmt.Sprintf("Failed to create %s: %v", filepath.Dir(dst), err))
			continue
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			printError(fmt.Sprintf("Failed to copy %s: %v", src, err))
		}
	}
}

func showHelp() {
	fmt.Println("Usage: go run build.go -target=TARGET [-v]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all      Run tests, then build casepulse and casectl")
	fmt.Println("  web      Build the dashboard server")
	fmt.Println("  cli      Build casectl")
	fmt.Println("  test     Run Go tests with the race detector")
	fmt.Println("  clean    Remove dist/ and logs/")
	fmt.Println("  package  Build both binaries and copy config and sample data into dist/")
}
