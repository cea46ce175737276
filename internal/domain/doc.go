// Package domain models station snow water equivalent (SWE) data and the
// Standardized Snow Water Equivalent Index (SSWEI) derived from it.
//
// # Data Source
//
// Station SWE records come from gridded or station NetCDF products such as
// CanSWE. Each station carries an identifier, WGS-84 coordinates and an
// elevation in metres; observations are daily SWE depths in millimetres.
// Missing observations are represented as NaN throughout the package.
//
// # Snow Season Conventions
//
// A snow season is a calendar window that may wrap New Year, by default
// 1 November through 30 April. A season that starts in one year and ends in
// the next belongs to the end year, so the 2000-11-01..2001-04-30 season is
// season 2001. See [SeasonWindow].
//
// # Index Computation
//
//	1. Daily SWE inside each season is integrated with the trapezoidal rule
//	   (mm x day). Seasons whose valid-day coverage is below the configured
//	   minimum are discarded.
//	2. The integrated totals of one station are ranked and converted to
//	   non-exceedance probabilities with the Gringorten plotting position:
//	     p = (rank - 0.44) / (n + 0.12)
//	   Tied totals share their mean rank.
//	3. SSWEI is the standard normal quantile of p.
//
// # Drought Classification
//
// SSWEI values map onto an ordered threshold table. A value falls into the
// first category whose upper boundary is greater than or equal to it, so the
// intervals are (previous boundary, boundary] and together partition the
// real line:
//
//	Exceptional Drought   SSWEI <= -2.0
//	Extreme Drought       -2.0 < SSWEI <= -1.5
//	Severe Drought        -1.5 < SSWEI <= -1.0
//	Moderate Drought      -1.0 < SSWEI <= -0.5
//	Near Normal           -0.5 < SSWEI <= 0.5
//	Abnormally Wet         0.5 < SSWEI
//
// Boundaries can be overridden per category; see [NewThresholdTable].
package domain
