// Package smx reads header metadata from compiled SourcePawn plugins.
//
// An SMX file starts with a 24 byte little-endian header followed by a table
// of sections. When the header marks the image as compressed, everything
// after DataOffs is a zlib stream that inflates to the rest of the image.
//
// The reader only understands what it needs to extract the plugin's myinfo
// block: the .names, .pubvars and .data sections. myinfo is a public
// variable holding five cells that point at NUL terminated strings in the
// data section: name, description, author, version and url.
//
//	info, err := smx.ReadMyInfo("plugins/ins_respawn.smx")
//	if err != nil {
//		return err
//	}
//	fmt.Println(info.Name, info.Version)
package smx
