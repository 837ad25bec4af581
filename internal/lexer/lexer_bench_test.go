package lexer

import (
	"strings"
	"testing"
)

// ============================================================================
// Lexer 基准测试
// ============================================================================
//
// 运行基准测试：
//   go test -bench=. -benchmem ./internal/lexer/...
//
// ============================================================================

var benchSource = `
package bubblesort;

import testutil.T;

public class Test {
    private static final int LIMIT = 0xff;

    public static void sort(int[] arr) {
        int n = arr.length;
        for (int i = 0; i < n-1; i++) {
            for (int j = 0; j < n-i-1; j++) {
                if (arr[j+1] <= arr[j]) {
                    int temp = arr[j];
                    arr[j] = arr[j+1];
                    arr[j+1] = temp;
                }
            }
        }
    }

    /* long arithmetic */
    public static long mix(int a, long b) {
        long acc = 10L;
        acc += b >>> 2;
        return (a < 0) ? -acc : acc;
    }
}
`

// BenchmarkLexer 测试完整的词法分析性能
func BenchmarkLexer(b *testing.B) {
	b.ReportAllocs()
	b.SetBytes(int64(len(benchSource)))

	for i := 0; i < b.N; i++ {
		lexer := New(benchSource, "Test.java")
		_ = lexer.ScanTokens()
	}
}

// BenchmarkLexerLargeFile 测试大文件的词法分析性能
func BenchmarkLexerLargeFile(b *testing.B) {
	largeSource := strings.Repeat(benchSource, 100)

	b.ReportAllocs()
	b.SetBytes(int64(len(largeSource)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		lexer := New(largeSource, "Large.java")
		_ = lexer.ScanTokens()
	}
}

// BenchmarkLexerNumbers 测试数字解析性能
func BenchmarkLexerNumbers(b *testing.B) {
	source := strings.Repeat("123 456 789 0 1 2 3 4 5 6 7 8 9 ", 50) +
		strings.Repeat("3.14 2.718 1.0e10 ", 30) +
		strings.Repeat("0xFF 0x1234 10L ", 20)

	b.ReportAllocs()
	b.SetBytes(int64(len(source)))

	for i := 0; i < b.N; i++ {
		lexer := New(source, "Numbers.java")
		_ = lexer.ScanTokens()
	}
}
