// Package unitypackage reads and writes Unity package archives.
//
// A Unity package is a gzip-compressed tar stream. Every asset is stored
// under a directory named after its GUID with up to three members:
//   - asset: the file content, absent for folder assets
//   - asset.meta: the YAML sidecar carrying the GUID and flags
//   - pathname: the project-relative path the asset is restored to
//
// # Packing
//
// Pack a project's Assets directory under a new base path:
//
//	stats, err := unitypackage.Pack(ctx, "./MyProject", "Assets/Vendor", "Assets", "vendor.unitypackage")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(stats.Assets, stats.Digest)
//
// Use [PackFromMetaList] to pack an explicit set of .meta files, or
// [PackTo] to stream the archive to any io.Writer.
//
// # Extracting
//
// Extract into a project, replacing existing assets:
//
//	stats, err := unitypackage.Extract(ctx, "vendor.unitypackage", "./OtherProject",
//	    unitypackage.ExtractWithOverwrite(true),
//	)
//
// Extraction decodes the whole archive into a private staging directory
// before anything is written to the output tree. Groups that are missing a
// member are skipped and reported in [ExtractStats].Malformed.
//
// # Inspecting
//
// [List] returns the assets in an archive without writing them to disk.
package unitypackage
