package defline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classify(line string) Defline {
	return Classify(line, Hint{}, DefaultOptions())
}

func TestClassify_Variants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line      string
		kind      Kind
		name      string
		readNum   int
		spotGroup string
		filtered  bool
	}{
		{"@channel_346_read_183_complement", NanoporeChannel, "channel_346_read_183", 0, "", false},
		{"@5d62e6b9-8e33-4b8e-a4b9-2e0b7c3f5a11_Basecall_2D_2d UNKNOWN_MINION_ch103_read1173_strand.fast5", NanoporeBasecall, "5d62e6b9-8e33-4b8e-a4b9-2e0b7c3f5a11", 0, "", false},
		{"@MINICOL235_20150904_FN_MN16_ch100_file16_strand.fast5_template", NanoporeFast5, "MINICOL235_20150904_FN_MN16_ch100_file16_strand", 0, "", false},
		{"@V300003413L4C001R0010000001/1", BGI, "V300003413L4C001R0010000001", 1, "", false},
		{"@5d62e6b9-8e33-4b8e-a4b9-2e0b7c3f5a11 runid=abc read=12 ch=340 barcode=BC01", NanoporeUUID, "5d62e6b9-8e33-4b8e-a4b9-2e0b7c3f5a11", 0, "BC01", false},
		{"@m130727_021351_42150_c100538232555500000315223311011327_s1_p0/16/0_5273", PacBio, "m130727_021351_42150_c100538232555500000315223311011327_s1_p0/16/0_5273", 0, "", false},
		{"@m64011_190830_220126/1/ccs", PacBio, "m64011_190830_220126/1/ccs", 0, "", false},
		{"@SRR001666.1 071112_SLXA-EAS1_s_7:5:1:817:345/2 length=36", SRAPrefixed, "SRR001666.1", 2, "", false},
		{">gnl|ti|1234567 name:AB123", TraceArchive, "1234567", 0, "", false},
		{"@SampleA_17 HWI-ST:1:FC:1:1101:1:2 1:N:0:ACGT orig_bc=ACGT new_bc=ACGT bc_diffs=0", QiimeDemux, "HWI-ST:1:FC:1:1101:1:2", 1, "SampleA", false},
		{"@NB501:12:HXX:1:11101:100:200:ACGTACGT 2:N:0:TTTT", IlluminaNewUMI, "NB501:12:HXX:1:11101:100:200", 2, "TTTT", false},
		{"@EAS139:136:FC706VJ:2:2104:15343:197393 1:Y:18:ATCACG", IlluminaNew, "EAS139:136:FC706VJ:2:2104:15343:197393", 1, "ATCACG", true},
		{"@NS500234:97:HC75GBGXX:1:11101:6479:1067 2:N:0:ATGTCA+CTAGTG", IlluminaNew, "NS500234:97:HC75GBGXX:1:11101:6479:1067", 2, "ATGTCA+CTAGTG", false},
		{"@M00123:12:000000000-A1B2C:1:1101:15589:1331", IlluminaNewBare, "M00123:12:000000000-A1B2C:1:1101:15589:1331", 0, "", false},
		{"@HWUSI-EAS100R:6:73:941:1973#ACGT/1", IlluminaOld, "HWUSI-EAS100R:6:73:941:1973", 1, "ACGT", false},
		{"@071112_SLXA-EAS1_s_7:5:1:817:345", IlluminaOld, "071112_SLXA-EAS1_s_7:5:1:817:345", 0, "", false},
		{"@A6MXZ:00017:00038", IonTorrent, "A6MXZ:00017:00038", 0, "", false},
		{">EM7LVYS02FOYNU length=249", LS454, "EM7LVYS02FOYNU", 0, "", false},
		{">427_14_1503_F3", ABSolid, "427_14_1503", 0, "", false},
		{"@VAB_1_3_108_R3", ABSolid, "VAB_1_3_108", 0, "", false},
		{"@VHE-242383071011-15-1-0-2", Helicos, "VHE-242383071011-15-1-0-2", 0, "", false},
		{"@read_one 2:N:0:GGCC", CasavaComment, "read_one", 2, "GGCC", false},
		{"@sample#TTAGGC/2", GenericSpotGroup, "sample", 2, "TTAGGC", false},
		{"@SEQ1/1", GenericSlashRead, "SEQ1", 1, "", false},
		{"@frag.2", GenericTrailingDigit, "frag", 2, "", false},
		{"@some-read description here", Generic, "some-read", 0, "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			d := classify(tt.line)
			require.True(t, d.Valid, tt.line)
			assert.Equal(t, tt.kind, d.Kind, tt.line)
			assert.Equal(t, tt.name, d.Name)
			assert.Equal(t, tt.readNum, d.ReadNum)
			assert.Equal(t, tt.spotGroup, d.SpotGroup)
			assert.Equal(t, tt.filtered, d.Filtered)
			assert.Equal(t, tt.line, d.Raw)
		})
	}
}

func TestClassify_PlatformFields(t *testing.T) {
	t.Parallel()

	d := classify("@channel_346_read_183_complement")
	assert.Equal(t, 346, d.Channel)
	assert.Equal(t, 183, d.NanoReadNo)
	assert.Equal(t, PoreComplement, d.PoreRead)
	assert.Equal(t, PlatformNanopore, d.Platform())

	d = classify("@5d62e6b9-8e33-4b8e-a4b9-2e0b7c3f5a11_Basecall_2D_2d UNKNOWN_MINION_ch103_read1173_strand.fast5")
	assert.Equal(t, Pore2D, d.PoreRead)
	assert.Equal(t, 103, d.Channel)
	assert.Equal(t, 1173, d.NanoReadNo)

	d = classify("@5d62e6b9-8e33-4b8e-a4b9-2e0b7c3f5a11 runid=abc read=12 ch=340")
	assert.Equal(t, 12, d.NanoReadNo)
	assert.Equal(t, 340, d.Channel)

	d = classify("@EAS139:136:FC706VJ:2:2104:15343:197393 1:N:18:ATCACG")
	assert.Equal(t, "2", d.Lane)
	assert.Equal(t, "2104", d.Tile)
	assert.Equal(t, "15343", d.X)
	assert.Equal(t, "197393", d.Y)
	assert.Equal(t, PlatformIllumina, d.Platform())

	d = classify(">EM7LVYS02FOYNU")
	assert.Equal(t, "02", d.Region)

	d = classify("@m54006_160504_020705/4194370/0_1234")
	assert.Equal(t, "m54006_160504_020705", d.Movie)
	assert.Equal(t, "4194370", d.ZMW)

	d = classify(">427_14_1503_F3")
	assert.Equal(t, "427", d.Panel)
	assert.Equal(t, "F3", d.TagType)

	d = classify("@SRR001666.1 071112_SLXA-EAS1_s_7:5:1:817:345 length=36")
	assert.Equal(t, "071112_SLXA-EAS1_s_7:5:1:817:345", d.OrigName)
}

func TestClassify_ZeroSpotGroupNormalized(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"@HWUSI-EAS100R:6:73:941:1973#0/1",
		"@EAS139:136:FC706VJ:2:2104:15343:197393 1:N:0:0",
		"@name#0/2",
		"@read_one 1:N:0:0",
	} {
		d := classify(line)
		require.True(t, d.Valid, line)
		assert.Empty(t, d.SpotGroup, line)
	}
}

func TestClassify_NoAlnumNameIsInvalid(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"@---/1", "@:::", ">_#ACGT", "@.. 1:N:0:ACGT"} {
		d := classify(line)
		assert.False(t, d.Valid, line)
		assert.Equal(t, Hint{}, d.Hint(), line)
	}
}

func TestClassify_NotADefline(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"", "ACGT", "+", "@", "@   "} {
		assert.False(t, classify(line).Valid, "%q", line)
	}
}

func TestClassify_StickyWins(t *testing.T) {
	t.Parallel()

	// Full classification prefers the Illumina variant.
	line := "@HWI:1:2:3:4#ACGT/1"
	require.Equal(t, IlluminaOld, classify(line).Kind)

	// A file fixed on the generic spot-group form keeps it.
	d := Classify(line, Hint{Kind: GenericSpotGroup}, DefaultOptions())
	require.True(t, d.Valid)
	assert.Equal(t, GenericSpotGroup, d.Kind)
	assert.Equal(t, "HWI:1:2:3:4", d.Name)
	assert.Equal(t, "ACGT", d.SpotGroup)

	// Sticky disabled means full classification.
	opts := DefaultOptions()
	opts.Sticky = false
	assert.Equal(t, IlluminaOld, Classify(line, Hint{Kind: GenericSpotGroup}, opts).Kind)
}

func TestClassify_StickyFallsThrough(t *testing.T) {
	t.Parallel()

	d := Classify("@SEQ1/2", Hint{Kind: IlluminaNew}, DefaultOptions())
	require.True(t, d.Valid)
	assert.Equal(t, GenericSlashRead, d.Kind)
	assert.Equal(t, Hint{Kind: GenericSlashRead}, d.Hint())
}

func TestClassify_EmbeddedNameStripped(t *testing.T) {
	t.Parallel()

	line := "@READNAME:1 2:N:0:READNAME:1:GATTACA"
	d := classify(line)
	require.True(t, d.Valid)
	assert.Equal(t, CasavaComment, d.Kind)
	assert.Equal(t, "READNAME:1", d.Name)
	assert.Equal(t, "GATTACA", d.SpotGroup)

	hint := d.Hint()
	assert.True(t, hint.EmbeddedName)

	// Later lines reuse the stripped form even for short names.
	d = Classify("@ab 2:N:0:ab_TTGG", hint, DefaultOptions())
	require.True(t, d.Valid)
	assert.Equal(t, "TTGG", d.SpotGroup)
}

func TestClassify_EmbeddedNameOnFieldBoundary(t *testing.T) {
	t.Parallel()

	hint := Hint{Kind: CasavaComment, EmbeddedName: true}
	tests := []struct {
		line string
		want string
	}{
		{"@A 1:N:0:ACGT", "ACGT"},
		{"@A 1:N:0:TTAGG", "TTAGG"},
		{"@A 1:N:0:A_ACGT", "ACGT"},
		{"@A 1:N:0:ACGT#A", "ACGT"},
		{"@CG 1:N:0:ACGT", "ACGT"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			d := Classify(tt.line, hint, DefaultOptions())
			require.True(t, d.Valid)
			assert.Equal(t, tt.want, d.SpotGroup)
		})
	}
}

func TestHint_Update(t *testing.T) {
	t.Parallel()

	var h Hint
	h = h.Update(Classify("@junk", h, DefaultOptions()))
	assert.Equal(t, Hint{Kind: Generic}, h)

	// A different variant later in the file does not replace the sticky one.
	h = Hint{Kind: IlluminaNew}
	h = h.Update(classify("@SEQ1/2"))
	assert.Equal(t, Hint{Kind: IlluminaNew}, h)

	h = Hint{Kind: CasavaComment}
	h = h.Update(classify("@READNAME:1 2:N:0:READNAME:1:GATTACA"))
	assert.Equal(t, Hint{Kind: CasavaComment, EmbeddedName: true}, h)

	assert.Equal(t, h, h.Update(Defline{}))
}

func TestClassify_BarcodeLikeNameNotStripped(t *testing.T) {
	t.Parallel()

	d := classify("@ACGT 1:N:0:ACGTACGT")
	require.True(t, d.Valid)
	assert.Equal(t, "ACGTACGT", d.SpotGroup)
	assert.False(t, d.Hint().EmbeddedName)
}

func TestClassify_Transforms(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.PrefixByte = '%'
	d := Classify("%SEQ9/2", Hint{}, opts)
	require.True(t, d.Valid)
	assert.Equal(t, "SEQ9", d.Name)

	opts = DefaultOptions()
	opts.IgnoreLeading = 4
	opts.IgnoreTrailing = 2
	d = Classify("@XXX_SEQ7/1ZZ", Hint{}, opts)
	require.True(t, d.Valid)
	assert.Equal(t, "SEQ7", d.Name)
	assert.Equal(t, 1, d.ReadNum)

	opts = DefaultOptions()
	opts.StripAfterPlus = true
	d = Classify("@SEQ3/1+junk", Hint{}, opts)
	require.True(t, d.Valid)
	assert.Equal(t, GenericSlashRead, d.Kind)
	assert.Equal(t, "SEQ3", d.Name)
}

func TestOrder(t *testing.T) {
	t.Parallel()

	order := Order()
	require.Len(t, order, int(numKinds)-1)
	assert.Equal(t, NanoporeChannel, order[0])
	assert.Equal(t, Generic, order[len(order)-1])

	pos := make(map[Kind]int, len(order))
	for i, k := range order {
		pos[k] = i
	}
	// Generic trailing-digit names must never shadow platform names.
	for _, k := range []Kind{IlluminaNew, IlluminaOld, BGI, IonTorrent} {
		assert.Less(t, pos[k], pos[GenericTrailingDigit], k.String())
	}
}

func TestKindStrings(t *testing.T) {
	t.Parallel()

	for k := Undefined; k < numKinds; k++ {
		assert.NotEqual(t, "unknown", k.String())
	}
	assert.Equal(t, "unknown", numKinds.String())
	assert.Equal(t, "2D", Pore2D.String())
	assert.Equal(t, "bgi", BGI.Platform().String())
}

func BenchmarkClassify(b *testing.B) {
	line := "@EAS139:136:FC706VJ:2:2104:15343:197393 1:Y:18:ATCACG"
	hint := classify(line).Hint()
	opts := DefaultOptions()

	b.Run("sticky", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Classify(line, hint, opts)
		}
	})
	b.Run("full", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Classify(line, Hint{}, opts)
		}
	})
}
