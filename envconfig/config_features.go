// config_features.go - Kachel-Einstellungen und Datei-Optionen
//
// Dieses Modul enthaelt:
// - Schalter fuer VAE- und UNet-Kachelung
// - Ziel-Kachelgroessen, Minimum, Kandidaten, Tiefe, Seed
// - Optionen fuer Datei-Auflistungen
package envconfig

// =============================================================================
// Kachelung
// =============================================================================

var (
	// VAEEnabled aktiviert die Kachelung im VAE
	VAEEnabled = BoolWithDefault("HYPERTILE_VAE_ENABLED")

	// UNetEnabled aktiviert die Kachelung im UNet
	UNetEnabled = BoolWithDefault("HYPERTILE_UNET_ENABLED")

	// VAETile ist die Ziel-Kachelgroesse im VAE (Pixel)
	VAETile = UintWithDefault("HYPERTILE_VAE_TILE")

	// UNetTile ist die Ziel-Kachelgroesse im UNet (Pixel)
	UNetTile = UintWithDefault("HYPERTILE_UNET_TILE")

	// MinTile ist die kleinste erlaubte Kachelkante (Pixel)
	MinTile = UintWithDefault("HYPERTILE_MIN_TILE")

	// SwapSize ist die Anzahl Raster-Kandidaten pro Dimension
	SwapSize = UintWithDefault("HYPERTILE_SWAP_SIZE")

	// Depth ist die tiefste UNet-Stufe, die gekachelt wird
	Depth = UintWithDefault("HYPERTILE_DEPTH")

	// Seed macht die Raster-Auswahl reproduzierbar (0 = zufaellig)
	Seed = Uint64WithDefault("HYPERTILE_SEED")
)

// =============================================================================
// Datei-Auflistung
// =============================================================================

var (
	// ListHiddenFiles nimmt versteckte Verzeichnisse in WalkFiles auf
	ListHiddenFiles = Bool("HYPERTILE_LIST_HIDDEN_FILES")

	// PreloadConcurrency begrenzt parallele Verzeichnis-Scans
	PreloadConcurrency = Uint("HYPERTILE_PRELOAD_CONCURRENCY", 4)
)
