// Package publish uploads generated update manifests and plugin files to S3.
//
// Objects are laid out the way the SourceMod Updater extension expects
// relative to the manifest URL:
//
//	<prefix>/update-<name>.txt
//	<prefix>/plugins/<name>.smx
//	<prefix>/scripting/<name>.sp
//
// Any S3 compatible store works; set endpoint and use_path_style for MinIO.
package publish
