// files.go - Auflisten und Durchlaufen von Verzeichnissen
//
// Dieses Modul enthaelt:
// - ListFiles: regulaere, nicht versteckte Dateien eines Verzeichnisses
// - WalkFiles: rekursiver Durchlauf mit Endungsfilter, folgt Symlinks
// - TruncatePath: Pfad relativ zu einer Basis, falls darunter
package fscache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/7blacky7/hypertile/logutil"
)

// ListFiles gibt die regulaeren Dateien in dir natuerlich sortiert zurueck.
// Namen mit fuehrendem Punkt werden ausgelassen.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	SortNatural(names)

	var files []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		// os.Stat folgt Symlinks auf Dateien
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			files = append(files, path)
		}
	}
	return files, nil
}

// WalkFiles gibt alle Dateien unter root zurueck. Verzeichnisse werden nach
// ihrem Pfad, Dateien darin nach ihrem Namen natuerlich sortiert.
// exts filtert nach Endung (ohne Beachtung der Gross-/Kleinschreibung, mit
// Punkt, z.B. ".safetensors"); nil laesst alle Dateien zu. Dateien in
// versteckten Verzeichnissen unterhalb von root erscheinen nur mit
// includeHidden. Existiert root nicht, ist das Ergebnis leer.
func WalkFiles(root string, exts []string, includeHidden bool) ([]string, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var allowed map[string]struct{}
	if exts != nil {
		allowed = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			allowed[strings.ToLower(ext)] = struct{}{}
		}
	}

	dirs := make(map[string][]string)
	if err := walkDir(root, make(map[string]struct{}), dirs); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(dirs))
	for dir := range dirs {
		paths = append(paths, dir)
	}
	SortNatural(paths)

	var out []string
	for _, dir := range paths {
		if !includeHidden && hiddenBelow(root, dir) {
			continue
		}

		files := dirs[dir]
		SortNatural(files)
		for _, name := range files {
			if allowed != nil {
				if _, ok := allowed[strings.ToLower(filepath.Ext(name))]; !ok {
					continue
				}
			}
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

// walkDir sammelt die Dateinamen pro Verzeichnis. visited enthaelt die
// aufgeloesten Pfade, damit Symlink-Zyklen nur einmal besucht werden.
// Nur Fehler an dir selbst werden zurueckgegeben, nicht lesbare
// Unterverzeichnisse werden uebersprungen.
func walkDir(dir string, visited map[string]struct{}, dirs map[string][]string) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if _, ok := visited[real]; ok {
		return nil
	}
	visited[real] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	logutil.Trace("walking directory", "dir", dir, "entries", len(entries))

	files := []string{}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())

		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			// kaputte Links zaehlen als Datei
			if fi, err := os.Stat(path); err == nil {
				isDir = fi.IsDir()
			}
		}

		if !isDir {
			files = append(files, e.Name())
			continue
		}
		if err := walkDir(path, visited, dirs); err != nil {
			slog.Debug("skipping unreadable directory", "dir", path, "error", err)
		}
	}
	dirs[dir] = files
	return nil
}

// hiddenBelow meldet, ob ein Pfadteil von dir unterhalb von root mit einem Punkt beginnt
func hiddenBelow(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return false
	}
	return slices.ContainsFunc(strings.Split(rel, string(filepath.Separator)), func(part string) bool {
		return strings.HasPrefix(part, ".") && part != ".."
	})
}

// TruncatePath gibt target relativ zu base zurueck, wenn target unter base
// liegt, sonst den absoluten Pfad. Ein leeres base steht fuer das
// Arbeitsverzeichnis.
func TruncatePath(target, base string) string {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	if base == "" {
		base = "."
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return absTarget
	}

	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil || !filepath.IsLocal(rel) && rel != "." {
		return absTarget
	}
	return rel
}
