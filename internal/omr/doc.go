// Package omr holds the fixed geometry of the printed answer sheet.
//
// Positions are defined in a reference raster (the resolution the scanner
// pipeline samples at, origin top-left) and translated into PDF page space
// (points, origin bottom-left) by a single linear scale and a vertical flip.
// Nothing here depends on student data.
package omr
