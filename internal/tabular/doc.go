// Package tabular models raw, headerless tables and the spreadsheet-style
// addressing used to cut matrices out of them.
//
// A Rect is zero-based and half-open. ParseRange("B3:AJW1217") yields
// rows [2,1217) and columns [1,960). AutoDetectMatrix finds the largest
// numeric block when no ranges are given.
package tabular
